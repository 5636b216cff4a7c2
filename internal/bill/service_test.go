package bill

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill2csv/internal/export"
	"github.com/zombor/bill2csv/internal/scanning"
)

var _ = Describe("Service", func() {
	var (
		scanner    *mockScanner
		timeSource *mockTimeSource
		service    *Service
		sessionID  string
	)

	BeforeEach(func() {
		scanner = newMockScanner()
		timeSource = &mockTimeSource{now: time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)}
		service = NewServiceWithDeps(scanner, NewMemoryStore(time.Hour, 0), &mockIDGenerator{}, timeSource, stubPreview)
		sessionID = service.NewSession()
	})

	AfterEach(func() {
		service.Wait()
	})

	Describe("NewSession", func() {
		It("creates distinct empty sessions", func() {
			other := service.NewSession()
			Expect(other).NotTo(Equal(sessionID))
			Expect(service.HasSession(other)).To(BeTrue())

			state, err := service.State(other)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Phase).To(Equal(PhaseEmpty))
		})
	})

	Describe("State", func() {
		It("fails for an unknown session", func() {
			_, err := service.State("nope")
			Expect(err).To(MatchError(ErrSessionNotFound))
		})
	})

	Describe("SelectFile", func() {
		It("accepts images", func() {
			state, err := service.SelectFile(sessionID, "bill.jpg", []byte("jpeg"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Phase).To(Equal(PhaseFileSelected))
			Expect(state.Preview).To(Equal("preview:image/jpeg"))
		})

		It("accepts PDFs", func() {
			_, err := service.SelectFile(sessionID, "bill.pdf", []byte("%PDF"), "application/pdf")
			Expect(err).NotTo(HaveOccurred())
		})

		It("normalizes the content type", func() {
			state, err := service.SelectFile(sessionID, "bill.png", []byte("png"), " IMAGE/PNG ")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Image.ContentType).To(Equal("image/png"))
		})

		It("rejects other types", func() {
			_, err := service.SelectFile(sessionID, "notes.txt", []byte("hello"), "text/plain")
			Expect(err).To(MatchError(ErrUnsupportedType))
			state, _ := service.State(sessionID)
			Expect(state.Phase).To(Equal(PhaseEmpty))
		})

		It("rejects empty files", func() {
			_, err := service.SelectFile(sessionID, "bill.jpg", nil, "image/jpeg")
			Expect(err).To(MatchError(ErrEmptyFile))
		})
	})

	Describe("StartExtraction", func() {
		When("no file is selected", func() {
			It("returns ErrNoFileSelected without scanning", func() {
				_, err := service.StartExtraction(sessionID)
				Expect(err).To(MatchError(ErrNoFileSelected))
				Expect(scanner.Calls()).To(BeZero())
			})
		})

		When("a file is selected", func() {
			BeforeEach(func() {
				_, err := service.SelectFile(sessionID, "bill.jpg", []byte("jpeg"), "image/jpeg")
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns an Extracting state", func() {
				scanner.release = make(chan struct{})
				state, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(state.Phase).To(Equal(PhaseExtracting))
				close(scanner.release)
			})

			It("stores the result once the scan finishes", func() {
				_, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				service.Wait()

				state, err := service.State(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(state.Phase).To(Equal(PhaseResult))
				Expect(state.Items).To(Equal(scanner.items))
			})

			It("fails the session when the scan fails", func() {
				scanner.scanErr = scanning.ErrTransport
				_, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				service.Wait()

				state, _ := service.State(sessionID)
				Expect(state.Phase).To(Equal(PhaseFailed))
				Expect(state.Error).To(Equal(MsgExtractionFailed))
			})

			It("refuses to start twice", func() {
				scanner.release = make(chan struct{})
				_, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				_, err = service.StartExtraction(sessionID)
				Expect(err).To(MatchError(ErrExtractionInProgress))
				close(scanner.release)
			})

			It("discards a result that lands after a reset", func() {
				scanner.release = make(chan struct{})
				_, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())

				_, err = service.Reset(sessionID)
				Expect(err).NotTo(HaveOccurred())
				close(scanner.release)
				service.Wait()

				state, _ := service.State(sessionID)
				Expect(state.Phase).To(Equal(PhaseEmpty))
				Expect(scanner.Calls()).To(Equal(1))
			})

			It("fails the session when the scan outlives the timeout", func() {
				scanner.release = make(chan struct{})
				service.SetExtractTimeout(10 * time.Millisecond)
				_, err := service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				service.Wait()

				state, _ := service.State(sessionID)
				Expect(state.Phase).To(Equal(PhaseFailed))
			})
		})
	})

	Describe("ExportCSV", func() {
		It("returns ErrNoResult before an extraction", func() {
			_, _, err := service.ExportCSV(sessionID)
			Expect(err).To(MatchError(ErrNoResult))
		})

		When("a result is available", func() {
			BeforeEach(func() {
				scanner.items = []scanning.LineItem{
					{Name: "Paracetamol 500mg", BatchNumber: str("B12,34"), Quantity: num(10)},
				}
				_, err := service.SelectFile(sessionID, "bill.jpg", []byte("jpeg"), "image/jpeg")
				Expect(err).NotTo(HaveOccurred())
				_, err = service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				service.Wait()
			})

			It("returns the dated filename and CSV content", func() {
				filename, data, err := service.ExportCSV(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(filename).To(Equal("bill_data_2025-06-30.csv"))
				Expect(string(data)).To(Equal(export.Serialize(scanner.items, export.Columns)))
				Expect(string(data)).To(HaveSuffix(`Paracetamol 500mg,,,"B12,34",,,10,,,,,`))
			})

			It("also exports XLSX", func() {
				filename, data, err := service.ExportXLSX(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(filename).To(Equal("bill_data_2025-06-30.xlsx"))
				Expect(string(data)).To(HavePrefix("PK"))
			})
		})

		When("the extraction found nothing", func() {
			It("exports only the header", func() {
				scanner.items = nil
				_, err := service.SelectFile(sessionID, "bill.jpg", []byte("jpeg"), "image/jpeg")
				Expect(err).NotTo(HaveOccurred())
				_, err = service.StartExtraction(sessionID)
				Expect(err).NotTo(HaveOccurred())
				service.Wait()

				_, data, err := service.ExportCSV(sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal(export.Serialize(nil, export.Columns)))
			})
		})
	})
})
