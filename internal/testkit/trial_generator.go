package testkit

import (
	"math/rand"

	"gomediate/domain/core"
	"gomediate/domain/table"
	"gomediate/ports"
)

// Column names produced by the trial generator.
const (
	ColExposure  = "exposure"
	ColExposure2 = "exposure2"
	ColMediator  = "mediator"
	ColMediator2 = "mediator2"
	ColOutcome   = "outcome"
	ColSite      = "site"
)

// TrialGeneratorConfig configures the synthetic trial data generator
type TrialGeneratorConfig struct {
	Rows                int     `json:"rows"`
	ExposureEffect      float64 `json:"exposure_effect"`
	ExposureInteraction float64 `json:"exposure_interaction"`
	MediatorEffect      float64 `json:"mediator_effect"`
	Mediator2Effect     float64 `json:"mediator2_effect"`
	MediatorInteraction float64 `json:"mediator_interaction"`
	DirectEffect        float64 `json:"direct_effect"`
	NoiseSD             float64 `json:"noise_sd"`
	Sites               int     `json:"sites"`
	SiteSD              float64 `json:"site_sd"`
	Seed                int64   `json:"seed"`
}

// DefaultTrialConfig returns sensible defaults for trial data generation
func DefaultTrialConfig() TrialGeneratorConfig {
	return TrialGeneratorConfig{
		Rows:                600,
		ExposureEffect:      0.8,
		ExposureInteraction: 0.4,
		MediatorEffect:      0.6,
		Mediator2Effect:     0.3,
		MediatorInteraction: 0.5,
		DirectEffect:        0.25,
		NoiseSD:             0.3,
		Sites:               4,
		SiteSD:              0.5,
		Seed:                42,
	}
}

// TrialDataGenerator generates synthetic mediation trial data with a
// known structural model, so recovered effects can be checked against
// the configured coefficients.
type TrialDataGenerator struct {
	config TrialGeneratorConfig
	rng    *rand.Rand
}

// NewTrialDataGenerator creates a new trial data generator
func NewTrialDataGenerator(config TrialGeneratorConfig) *TrialDataGenerator {
	return &TrialDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces one table of trial observations. The structural
// model feeds every study variant:
//
//	mediator  = b_e*exposure + b_ee2*exposure*exposure2 + site + noise
//	mediator2 = 0.5*exposure + site + noise
//	outcome   = b_m*mediator + b_m2*mediator2 + b_mm2*mediator*mediator2
//	            + b_d*exposure + site + noise
func (g *TrialDataGenerator) Generate() (*table.Table, error) {
	if g.config.Rows <= 0 {
		return nil, core.ErrEmptyData
	}

	siteOffsets := make([]float64, g.config.Sites)
	for i := range siteOffsets {
		siteOffsets[i] = g.rng.NormFloat64() * g.config.SiteSD
	}

	n := g.config.Rows
	exposure := make([]float64, n)
	exposure2 := make([]float64, n)
	mediator := make([]float64, n)
	mediator2 := make([]float64, n)
	outcome := make([]float64, n)
	site := make([]float64, n)

	for i := 0; i < n; i++ {
		e := g.rng.NormFloat64()
		e2 := g.rng.NormFloat64()

		offset := 0.0
		if g.config.Sites > 0 {
			s := g.rng.Intn(g.config.Sites)
			site[i] = float64(s)
			offset = siteOffsets[s]
		}

		m := g.config.ExposureEffect*e +
			g.config.ExposureInteraction*e*e2 +
			offset + g.noise()
		m2 := 0.5*e + offset + g.noise()
		o := g.config.MediatorEffect*m +
			g.config.Mediator2Effect*m2 +
			g.config.MediatorInteraction*m*m2 +
			g.config.DirectEffect*e +
			offset + g.noise()

		exposure[i] = e
		exposure2[i] = e2
		mediator[i] = m
		mediator2[i] = m2
		outcome[i] = o
	}

	data := table.New()
	for _, col := range []struct {
		name   string
		values []float64
	}{
		{ColExposure, exposure},
		{ColExposure2, exposure2},
		{ColMediator, mediator},
		{ColMediator2, mediator2},
		{ColOutcome, outcome},
		{ColSite, site},
	} {
		if err := data.AddColumn(col.name, col.values); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// GenerateDataset wraps Generate in the reader port's dataset shape.
func (g *TrialDataGenerator) GenerateDataset(name string) (*ports.Dataset, error) {
	data, err := g.Generate()
	if err != nil {
		return nil, err
	}
	return &ports.Dataset{Name: name, Table: data}, nil
}

func (g *TrialDataGenerator) noise() float64 {
	return g.rng.NormFloat64() * g.config.NoiseSD
}
