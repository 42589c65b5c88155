package storage_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yurie-chat/yurie/pkg/storage"
)

var _ = Describe("NotFoundError", func() {
	It("names the collection and key", func() {
		err := storage.NotFoundError{Collection: "chats", Key: "c1"}
		Expect(err.Error()).To(Equal("record not found: chats/c1"))
		Expect(storage.NotFoundError{}.Error()).To(Equal("record not found"))
	})

	It("is detected through wrapping", func() {
		err := fmt.Errorf("loading: %w", storage.NotFoundError{Key: "k"})
		Expect(storage.IsNotFound(err)).To(BeTrue())
		Expect(storage.IsNotFound(errors.New("other"))).To(BeFalse())
	})
})
