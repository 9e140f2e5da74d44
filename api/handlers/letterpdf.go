package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/types"
)

// HandleGenerateLetterPDF handles POST /api/generate-letter-pdf: renders
// a previously-drafted letter body as a single-page A4 PDF for
// download. It takes the same body as save-letter since the subject
// and body are all the rendering needs.
func (h *LettersHandler) HandleGenerateLetterPDF(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.logger); !ok {
		return
	}

	var req api.SaveLetterRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.BodyDE) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "body_de is required").WithHTTPStatus(400), h.logger)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	if req.Subject != "" {
		pdf.MultiCell(0, 8, req.Subject, "", "L", false)
		pdf.Ln(4)
	}
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, req.BodyDE, "", "L", false)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="letter.pdf"`)
	if err := pdf.Output(w); err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to render pdf").WithCause(err).WithHTTPStatus(500), h.logger)
	}
}

func marshalVariables(v map[string]string) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalVariables(data []byte) (map[string]string, error) {
	var out map[string]string
	err := json.Unmarshal(data, &out)
	return out, err
}
