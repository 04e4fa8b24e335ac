package memory_test

import (
	"testing"

	"github.com/aliuyar1234/circles/internal/store/memory"
	"github.com/aliuyar1234/circles/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return memory.New()
	})
}
