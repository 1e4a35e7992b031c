package convert

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFCPU counts pages with pdfcpu's reader, without spawning a process.
type PDFCPU struct{}

// NewPDFCPU returns a PageCounter. pdfcpu is kept from writing a config dir to $HOME.
func NewPDFCPU() PDFCPU {
	disableConfigDir.Do(api.DisableConfigDir)
	return PDFCPU{}
}

var _ PageCounter = PDFCPU{}

func (PDFCPU) PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}
