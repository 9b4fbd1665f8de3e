package qdrant_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
	"github.com/javajedis/legalconnect-ai/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	Describe("NewDriver", func() {
		It("should return an error when the host is empty", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{
				Dimensions: 768,
			}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("qdrant host is required"))
		})

		It("should return an error when dimensions are not specified", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{
				Host: "localhost",
			}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("dimensions"))
		})

		It("should bootstrap the collection on first connect", func() {
			// Requires a running Qdrant instance
			// Covered by integration tests
			Skip("Requires running Qdrant instance")
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*qdrant.Driver)(nil)
		})
	})
})
