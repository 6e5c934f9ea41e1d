package promotion

import (
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	km.Lock("p1")

	acquired := make(chan struct{})
	go func() {
		km.Lock("p1")
		km.Unlock("p1")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	km.Unlock("p1")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	km.Lock("p1")
	defer km.Unlock("p1")

	acquired := make(chan struct{})
	go func() {
		km.Lock("p2")
		km.Unlock("p2")
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("different keys must not block each other")
	}
}
