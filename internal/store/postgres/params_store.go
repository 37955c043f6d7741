package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// ParamsStore persists the configuration state in PostgreSQL. The state is a
// single row plus per-asset and per-executor child tables, replaced wholesale
// on every save inside one transaction.
type ParamsStore struct {
	client *Client
}

// NewParamsStore creates a ParamsStore backed by the given client.
func NewParamsStore(client *Client) *ParamsStore {
	return &ParamsStore{client: client}
}

var _ domain.ParamsStore = (*ParamsStore)(nil)

// Save writes the full configuration version. The child tables are rewritten
// so the stored state always matches exactly one published snapshot.
func (s *ParamsStore) Save(ctx context.Context, p *domain.Params) error {
	tx, err := s.client.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save params: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO config_state (
			id, version, owner_addr, fee_beneficiary, max_gas_price_wei,
			min_profit_bps, max_slippage_bps, beneficiary_fee_bps,
			est_gas_units, paused, total_trades, total_profit, updated_at
		) VALUES (1, $1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11::numeric, NOW())
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			owner_addr = EXCLUDED.owner_addr,
			fee_beneficiary = EXCLUDED.fee_beneficiary,
			max_gas_price_wei = EXCLUDED.max_gas_price_wei,
			min_profit_bps = EXCLUDED.min_profit_bps,
			max_slippage_bps = EXCLUDED.max_slippage_bps,
			beneficiary_fee_bps = EXCLUDED.beneficiary_fee_bps,
			est_gas_units = EXCLUDED.est_gas_units,
			paused = EXCLUDED.paused,
			total_trades = EXCLUDED.total_trades,
			total_profit = EXCLUDED.total_profit,
			updated_at = NOW()`
	_, err = tx.Exec(ctx, upsert,
		int64(p.Version),
		p.Owner.Hex(),
		p.FeeBeneficiary.Hex(),
		numStr(p.MaxGasPriceWei),
		int32(p.MinProfitBps),
		int32(p.MaxSlippageBps),
		int32(p.BeneficiaryFeeBps),
		int64(p.EstGasUnits),
		p.Paused,
		int64(p.TotalTrades),
		numStr(p.TotalProfit),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert config_state: %w", err)
	}

	for _, table := range []string{"config_assets", "config_executors", "config_stats"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", table, err)
		}
	}

	for asset, policy := range p.Assets {
		_, err := tx.Exec(ctx,
			`INSERT INTO config_assets (asset, supported, paused, max_trade_size)
			 VALUES ($1, $2, $3, $4::numeric)`,
			asset.Hex(), policy.Supported, policy.Paused, numStr(policy.MaxTradeSize),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert asset policy %s: %w", asset.Hex(), err)
		}
	}
	for executor, enabled := range p.Executors {
		if !enabled {
			continue
		}
		_, err := tx.Exec(ctx,
			"INSERT INTO config_executors (executor) VALUES ($1)",
			executor.Hex(),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert executor %s: %w", executor.Hex(), err)
		}
	}
	for asset, st := range p.Stats {
		_, err := tx.Exec(ctx,
			`INSERT INTO config_stats (asset, trades, profit)
			 VALUES ($1, $2, $3::numeric)`,
			asset.Hex(), int64(st.Trades), numStr(st.Profit),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert asset stats %s: %w", asset.Hex(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save params: %w", err)
	}
	return nil
}

// Load reads the persisted configuration. Returns domain.ErrNotFound when no
// state has been saved yet.
func (s *ParamsStore) Load(ctx context.Context) (*domain.Params, error) {
	const q = `
		SELECT version, owner_addr, fee_beneficiary, max_gas_price_wei::text,
		       min_profit_bps, max_slippage_bps, beneficiary_fee_bps,
		       est_gas_units, paused, total_trades, total_profit::text
		FROM config_state WHERE id = 1`

	var (
		version, estGas, totalTrades          int64
		owner, beneficiary, gasPrice, profit  string
		minProfit, maxSlippage, beneficiaryBp int32
		paused                                bool
	)
	err := s.client.pool.QueryRow(ctx, q).Scan(
		&version, &owner, &beneficiary, &gasPrice,
		&minProfit, &maxSlippage, &beneficiaryBp,
		&estGas, &paused, &totalTrades, &profit,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: load params: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load config_state: %w", err)
	}

	p := &domain.Params{
		Version:           uint64(version),
		Owner:             common.HexToAddress(owner),
		FeeBeneficiary:    common.HexToAddress(beneficiary),
		MaxGasPriceWei:    parseNum(gasPrice),
		MinProfitBps:      uint32(minProfit),
		MaxSlippageBps:    uint32(maxSlippage),
		BeneficiaryFeeBps: uint32(beneficiaryBp),
		EstGasUnits:       uint64(estGas),
		Paused:            paused,
		Executors:         make(map[common.Address]bool),
		Assets:            make(map[common.Address]domain.AssetPolicy),
		TotalTrades:       uint64(totalTrades),
		TotalProfit:       parseNum(profit),
		Stats:             make(map[common.Address]domain.AssetStats),
	}

	if err := s.loadAssets(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadExecutors(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadStats(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ParamsStore) loadAssets(ctx context.Context, p *domain.Params) error {
	rows, err := s.client.pool.Query(ctx,
		"SELECT asset, supported, paused, max_trade_size::text FROM config_assets")
	if err != nil {
		return fmt.Errorf("postgres: load config_assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			asset, maxSize string
			policy         domain.AssetPolicy
		)
		if err := rows.Scan(&asset, &policy.Supported, &policy.Paused, &maxSize); err != nil {
			return fmt.Errorf("postgres: scan asset policy: %w", err)
		}
		policy.MaxTradeSize = parseNum(maxSize)
		p.Assets[common.HexToAddress(asset)] = policy
	}
	return rows.Err()
}

func (s *ParamsStore) loadExecutors(ctx context.Context, p *domain.Params) error {
	rows, err := s.client.pool.Query(ctx, "SELECT executor FROM config_executors")
	if err != nil {
		return fmt.Errorf("postgres: load config_executors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var executor string
		if err := rows.Scan(&executor); err != nil {
			return fmt.Errorf("postgres: scan executor: %w", err)
		}
		p.Executors[common.HexToAddress(executor)] = true
	}
	return rows.Err()
}

func (s *ParamsStore) loadStats(ctx context.Context, p *domain.Params) error {
	rows, err := s.client.pool.Query(ctx,
		"SELECT asset, trades, profit::text FROM config_stats")
	if err != nil {
		return fmt.Errorf("postgres: load config_stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			asset, profit string
			trades        int64
		)
		if err := rows.Scan(&asset, &trades, &profit); err != nil {
			return fmt.Errorf("postgres: scan asset stats: %w", err)
		}
		p.Stats[common.HexToAddress(asset)] = domain.AssetStats{
			Trades: uint64(trades),
			Profit: parseNum(profit),
		}
	}
	return rows.Err()
}
