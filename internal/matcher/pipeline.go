// Package matcher classifies bank transactions against a tenant's mapping
// rules with a fixed order of tiers and routes each result by confidence.
package matcher

import (
	"context"
	"fmt"
	"time"

	"ledger-recon/internal/domain"
	"ledger-recon/pkg/logger"
)

// Classification is the routed outcome for one transaction. Mapping is nil
// when every tier missed.
type Classification struct {
	Transaction domain.BankTransaction     `json:"transaction"`
	Mapping     *domain.TransactionMapping `json:"mapping,omitempty"`
	Decision    domain.Decision            `json:"decision"`
	Reasoning   []string                   `json:"reasoning,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// Tier reports the source of the mapping, empty when there is none.
func (c Classification) Tier() domain.MappingSource {
	if c.Mapping == nil {
		return ""
	}
	return c.Mapping.Source
}

// Pipeline evaluates transactions against one snapshot.
type Pipeline struct {
	cfg   Config
	snap  *Snapshot
	tiers []Tier
}

func NewPipeline(cfg Config, snap *Snapshot) *Pipeline {
	return &Pipeline{cfg: cfg, snap: snap, tiers: cfg.Tiers()}
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Snapshot() *Snapshot {
	return p.snap
}

// Classify runs the tiers in order and routes the first hit. A transaction
// that cannot be classified is returned with an error and routed to
// escalation so the caller can still count it.
func (p *Pipeline) Classify(tx domain.BankTransaction) (Classification, error) {
	result := Classification{Transaction: tx, Decision: domain.DecisionNeedsEscalation}

	if err := tx.Validate(); err != nil {
		result.Error = err.Error()
		return result, err
	}

	for _, tier := range p.tiers {
		h, ok := tier.Match(tx, p.snap)
		if !ok {
			continue
		}

		bank := p.snap.BankAccount()
		if bank == nil {
			result.Error = domain.ErrNoBankAccount.Error()
			return result, domain.ErrNoBankAccount
		}

		mapping := &domain.TransactionMapping{
			Transaction: tx,
			Confidence:  h.Confidence,
			Source:      tier.Source(),
			RuleID:      h.RuleID,
			Reasoning:   []string{h.Reason},
		}
		if tx.IsMoneyOut() {
			mapping.DebitAccount = h.Account.Ref()
			mapping.CreditAccount = bank.Ref()
		} else {
			mapping.DebitAccount = bank.Ref()
			mapping.CreditAccount = h.Account.Ref()
		}

		result.Mapping = mapping
		result.Decision = p.cfg.Route(h.Confidence)
		result.Reasoning = append(result.Reasoning, h.Reason,
			fmt.Sprintf("confidence %d routed %s", h.Confidence, result.Decision))
		return result, nil
	}

	result.Reasoning = append(result.Reasoning, "no tier produced a qualifying match")
	return result, nil
}

// ClassifyBatch classifies every transaction on a bounded worker pool.
// Results keep the input order. A failing transaction is logged and routed
// to escalation without affecting the rest of the batch.
func (p *Pipeline) ClassifyBatch(ctx context.Context, txs []domain.BankTransaction) ([]Classification, BatchStats) {
	start := time.Now()
	results := make([]Classification, len(txs))

	errs := Parallel(ctx, len(txs), p.cfg.Workers, func(ctx context.Context, i int) error {
		c, err := p.Classify(txs[i])
		results[i] = c
		return err
	})
	for i, err := range errs {
		if err == nil {
			continue
		}
		results[i] = Failed(txs[i], err)
		logger.GetLogger().WithError(err).WithField("transaction_id", txs[i].ID).Warn("Failed to classify transaction")
	}

	return results, Tally(results, time.Since(start), p.cfg.EscalationCostPerTx)
}

// Failed builds the escalation result for a transaction that errored.
func Failed(tx domain.BankTransaction, err error) Classification {
	return Classification{
		Transaction: tx,
		Decision:    domain.DecisionNeedsEscalation,
		Reasoning:   []string{"classification failed: " + err.Error()},
		Error:       err.Error(),
	}
}
