package store_test

import (
	"testing"

	"github.com/warp/giftcert-engine/giftcert"
	"github.com/warp/giftcert-engine/giftcert/store"
	"github.com/warp/giftcert-engine/giftcert/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) giftcert.Store {
		return store.NewMemory()
	})
}
