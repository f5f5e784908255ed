package invoices

import (
	"context"
	"fmt"
	"os"

	"github.com/vitwit/usdcpay/types"
	"gopkg.in/yaml.v3"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore holds a fixed set of invoices in insertion order.
type MemoryStore struct {
	order []string
	byID  map[string]types.InvoiceRecord
}

// NewMemoryStore validates records and rejects duplicate ids.
func NewMemoryStore(records ...types.InvoiceRecord) (*MemoryStore, error) {
	s := &MemoryStore{byID: make(map[string]types.InvoiceRecord, len(records))}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byID[rec.ID]; dup {
			return nil, fmt.Errorf("duplicate invoice id %q", rec.ID)
		}
		s.order = append(s.order, rec.ID)
		s.byID[rec.ID] = rec
	}
	return s, nil
}

type invoiceFile struct {
	Invoices []types.InvoiceRecord `yaml:"invoices"`
}

// LoadYAML reads an invoice file of the form
//
//	invoices:
//	  - id: inv-001
//	    vendorAddress: "0x..."
//	    amount: "100.00"
func LoadYAML(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML is LoadYAML for in-memory content.
func ParseYAML(data []byte) (*MemoryStore, error) {
	var file invoiceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse invoice file: %w", err)
	}
	return NewMemoryStore(file.Invoices...)
}

func (s *MemoryStore) GetInvoiceByID(_ context.Context, id string) (*types.InvoiceRecord, error) {
	rec, ok := s.byID[id]
	if !ok {
		return nil, notFound(id)
	}
	return &rec, nil
}

func (s *MemoryStore) ListInvoices(context.Context) ([]types.InvoiceRecord, error) {
	out := make([]types.InvoiceRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}
