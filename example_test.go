package objpool_test

import (
	"fmt"

	objpool "github.com/joeycumines/go-objpool"
)

func ExamplePool() {
	built := 0

	// buffer is the pooled type; the factory only ever runs on a cache miss.
	type buffer struct {
		id int
	}

	pool := objpool.NewPool(func() *buffer {
		built++
		return &buffer{id: built}
	}, objpool.WithInterval(0)) // always admit, for a deterministic example

	h := pool.Get()
	fmt.Printf("built %d buffer(s) so far, got id %d\n", built, h.Object.id)
	pool.Recycle(h)

	// the next Get on this same goroutine is served from the Stack, not the
	// factory: same object, no new allocation.
	h2 := pool.Get()
	fmt.Printf("built %d buffer(s) so far, got id %d (reused: %t)\n", built, h2.Object.id, h2.Object == h.Object)
	pool.Recycle(h2)

	//output:
	//built 1 buffer(s) so far, got id 1
	//built 1 buffer(s) so far, got id 1 (reused: true)
}
