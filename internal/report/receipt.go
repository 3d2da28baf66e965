package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gardenplots/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const qrImage = "booking-qr"

// ReceiptData is everything printed on a booking receipt.
type ReceiptData struct {
	Booking       *models.Booking
	GardenAddress string
	HolderName    string
	IssuedAt      time.Time
}

// ReceiptQRContent is the text encoded in the receipt's QR code.
func ReceiptQRContent(b *models.Booking) string {
	return fmt.Sprintf("gardenplots:booking:%s:%s", b.ID, b.Status)
}

// WriteReceiptPDF renders a one-page A4 receipt with a QR code of the booking id.
func WriteReceiptPDF(w io.Writer, d ReceiptData) error {
	b := d.Booking
	png, err := qrcode.Encode(ReceiptQRContent(b), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Garden plot booking receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "GARDEN PLOT RECEIPT")
	pdf.Ln(14)

	// core fonts are cp1252 only
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking      : %s", b.ID),
		fmt.Sprintf("Garden       : %s", safe(b.GardenName)),
		fmt.Sprintf("Address      : %s", safe(d.GardenAddress)),
		fmt.Sprintf("Holder       : %s", safe(d.HolderName)),
		fmt.Sprintf("Period       : %s - %s (%d months)", b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout), b.DurationMonths),
		fmt.Sprintf("Total        : %s", models.FormatCents(b.TotalPriceCents)),
		fmt.Sprintf("Payment      : %s **** %s", b.PaymentMethod, safe(b.CardLast4)),
		fmt.Sprintf("Status       : %s", b.Status),
		fmt.Sprintf("Issued       : %s", d.IssuedAt.Format("02.01.2006 15:04")),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, tr(s))
		pdf.Ln(7)
	}

	pdf.RegisterImageOptionsReader(qrImage, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions(qrImage, 150, 30, 45, 45, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Payment was simulated. No funds were charged. Show this receipt to the garden keeper.", "", "", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// ReceiptFileName returns the download name of a booking receipt.
func ReceiptFileName(b *models.Booking) string {
	return fmt.Sprintf("receipt_%s.pdf", b.ID)
}

func safe(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
