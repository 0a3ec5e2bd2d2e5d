package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Table{
		Headers: []string{"Ticket", "Student", "Progress"},
		Rows: [][]string{
			{"NDC-000001", "Asha, K", "50"},
			{"NDC-000002"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ticket,Student,Progress\nNDC-000001,\"Asha, K\",50\nNDC-000002,,\n", string(out))
}

func TestCSVExporterRejectsWideRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{Headers: []string{"A"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	photo := &bytes.Buffer{}
	require.NoError(t, png.Encode(photo, img))

	out, err := NewPDFExporter().Render(Certificate{
		Title:     "NDC Request Details",
		Fields:    []Field{{Label: "Ticket", Value: "NDC-000001"}, {Label: "Name", Value: "Asha"}},
		Photo:     photo.Bytes(),
		PhotoType: "png",
		Approvals: Table{Headers: []string{"Admin", "Status", "Remarks"}, Rows: [][]string{{"Library", "approved", ""}}},
		Footer:    "Overall Status: In Review",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresFields(t *testing.T) {
	_, err := NewPDFExporter().Render(Certificate{Title: "x"})
	assert.Error(t, err)
}
