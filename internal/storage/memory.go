package storage

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Skufu/medify/internal/prescription"
)

// Memory keeps prescriptions in process. It is used when ENABLE_DB is off
// and loses everything on restart.
type Memory struct {
	c *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{c: cache.New(cache.NoExpiration, 0)}
}

func (m *Memory) Save(_ context.Context, p prescription.Prescription) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Items = append([]prescription.RxItem{}, p.Items...)
	m.c.Set(p.ID.String(), p, cache.NoExpiration)
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (prescription.Prescription, error) {
	v, ok := m.c.Get(id.String())
	if !ok {
		return prescription.Prescription{}, ErrNotFound
	}
	return clone(v.(prescription.Prescription)), nil
}

func (m *Memory) ListByPatient(_ context.Context, patientID string) ([]prescription.Prescription, error) {
	out := []prescription.Prescription{}
	for _, item := range m.c.Items() {
		p := item.Object.(prescription.Prescription)
		if p.PatientID == patientID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func clone(p prescription.Prescription) prescription.Prescription {
	p.Items = append([]prescription.RxItem{}, p.Items...)
	return p
}
