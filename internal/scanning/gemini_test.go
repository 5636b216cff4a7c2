package scanning

import (
	"context"
	"errors"
	"time"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeGenerator is a mock implementation of contentGenerator
type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	calls int
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

var _ = Describe("Gemini", func() {
	var (
		generator *fakeGenerator
		scanner   *Gemini
		items     []LineItem
		err       error
	)

	BeforeEach(func() {
		generator = &fakeGenerator{resp: textResponse(`[{"name": "Paracetamol"}, {"name": "Ibuprofen"}]`)}
		scanner = &Gemini{model: generator, timeout: time.Second}
	})

	JustBeforeEach(func() {
		// image/png is passed through without decoding
		items, err = scanner.ScanBill(context.Background(), []byte("png bytes"), "image/png")
	})

	When("the model returns a JSON array", func() {
		It("should return the items in order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].Name).To(Equal("Paracetamol"))
			Expect(items[1].Name).To(Equal("Ibuprofen"))
		})

		It("should send the prompt and the image", func() {
			Expect(generator.calls).To(Equal(1))
			Expect(generator.parts).To(HaveLen(2))
			Expect(generator.parts[0]).To(Equal(genai.Text(billScanPrompt)))
			Expect(generator.parts[1]).To(Equal(genai.ImageData("png", []byte("png bytes"))))
		})
	})

	When("the text is split across parts", func() {
		BeforeEach(func() {
			generator.resp = textResponse(`[{"name": `, `"Split"}]`)
		})

		It("should join the parts before parsing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Split"))
		})
	})

	When("no API key is configured", func() {
		BeforeEach(func() {
			scanner, err = NewGemini(context.Background(), "", "", 0)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails with a configuration error", func() {
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(items).To(BeNil())
		})

		It("never creates a client", func() {
			Expect(scanner.client).To(BeNil())
			Expect(scanner.Close()).To(Succeed())
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			generator.err = errors.New("rpc error: code = Unavailable")
		})

		It("returns a transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
			Expect(err.Error()).To(ContainSubstring("Unavailable"))
		})
	})

	When("the model returns no candidates", func() {
		BeforeEach(func() {
			generator.resp = &genai.GenerateContentResponse{}
		})

		It("returns an empty response error", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the candidate has no content", func() {
		BeforeEach(func() {
			generator.resp = &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
		})

		It("returns an empty response error", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the model returns blank text", func() {
		BeforeEach(func() {
			generator.resp = textResponse("  \n")
		})

		It("returns an empty response error", func() {
			Expect(err).To(MatchError(ErrEmptyResponse))
		})
	})

	When("the model returns malformed JSON", func() {
		BeforeEach(func() {
			generator.resp = textResponse(`[{"name": "cut off`)
		})

		It("returns a parse error", func() {
			Expect(err).To(MatchError(ErrParse))
		})
	})

	When("the image cannot be converted", func() {
		It("fails before calling the model", func() {
			_, scanErr := scanner.ScanBill(context.Background(), []byte("not an image"), "image/jpeg")
			Expect(scanErr).To(HaveOccurred())
			Expect(generator.calls).To(Equal(1)) // only the JustBeforeEach call
		})
	})
})

var _ = Describe("Kind", func() {
	DescribeTable("labels each failure class",
		func(err error, kind string) {
			Expect(Kind(err)).To(Equal(kind))
		},
		Entry("nil", nil, ""),
		Entry("configuration", ErrConfiguration, "configuration"),
		Entry("wrapped empty response", errors.Join(errors.New("ctx"), ErrEmptyResponse), "empty_response"),
		Entry("parse", ErrParse, "parse"),
		Entry("transport", ErrTransport, "transport"),
		Entry("other", errors.New("boom"), "other"),
	)
})

var _ = Describe("Gemini with a WebP upload", func() {
	It("converts the image and calls the model", func() {
		generator := &fakeGenerator{resp: textResponse(`[{"name": "Gauze"}]`)}
		scanner := &Gemini{model: generator, timeout: time.Second}

		items, err := scanner.ScanBill(context.Background(), tinyWebP(), "image/webp")
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(generator.calls).To(Equal(1))

		blob, ok := generator.parts[1].(genai.Blob)
		Expect(ok).To(BeTrue())
		Expect(blob.MIMEType).To(Equal("image/png"))
	})
})
