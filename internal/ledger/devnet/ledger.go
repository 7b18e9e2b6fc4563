// Package devnet implements a local persistent ledger on GORM. Records and
// transactions live in SQLite by default or in MySQL; transactions become
// final a fixed block time after submission.
package devnet

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

const (
	// DefaultAddress is used when no contract address is configured
	DefaultAddress = "0x6E6E4654000000000000000000000000000000D1"

	defaultPollInterval = 100 * time.Millisecond
	slowQueryThreshold  = 200 * time.Millisecond

	componentName = "ledger.devnet"
)

// ProofChecker validates the proofs attached to writes. The devnet FHE
// gateway implements it.
type ProofChecker interface {
	VerifyInputProof(contract, account string, handle fhe.Handle, proof []byte) error
	VerifyDecryptionProof(contract string, handles []fhe.Handle, encoded, proof []byte) error
}

// Config selects the database and block timing
type Config struct {
	Driver       string // "sqlite" (default) or "mysql"
	Path         string // SQLite file
	DSN          string // MySQL DSN
	Address      string
	BlockTime    time.Duration
	PollInterval time.Duration
}

// Ledger implements ledger.Ledger
type Ledger struct {
	db        *gorm.DB
	address   string
	blockTime time.Duration
	poll      time.Duration
	checker   ProofChecker
	logger    logger.Logger

	// writeMu serializes writes so duplicate and already-verified checks
	// see a consistent row
	writeMu sync.Mutex

	now func() time.Time
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open connects to the database and migrates the schema. A nil checker
// accepts every proof.
func Open(cfg Config, checker ProofChecker, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	log = log.Module("devnet")

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryDatabase).
			Context("driver", driverName(cfg)).
			Context("operation", "open").
			Build()
	}

	if driverName(cfg) == "sqlite" {
		// SQLite allows a single writer; one connection also keeps
		// in-memory databases alive across calls
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.New(err).Component(componentName).Category(errors.CategoryDatabase).Build()
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&recordRow{}, &txRow{}); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}

	address := cfg.Address
	if address == "" {
		address = DefaultAddress
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	log.Info("devnet ledger opened",
		logger.String("driver", driverName(cfg)),
		logger.String("address", address),
		logger.Duration("block_time", cfg.BlockTime))

	return &Ledger{
		db:        db,
		address:   address,
		blockTime: cfg.BlockTime,
		poll:      poll,
		checker:   checker,
		logger:    log,
		now:       time.Now,
	}, nil
}

func driverName(cfg Config) string {
	if cfg.Driver == "" {
		return "sqlite"
	}
	return strings.ToLower(cfg.Driver)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "genenft-devnet.db"
		}
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return nil, errors.New(err).
						Component(componentName).
						Category(errors.CategoryConfiguration).
						Context("path", path).
						Build()
				}
			}
		}
		return sqlite.Open(path), nil
	case "mysql":
		if cfg.DSN == "" {
			return nil, errors.Newf("mysql driver requires a dsn").
				Component(componentName).
				Category(errors.CategoryConfiguration).
				Build()
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, errors.Newf("unsupported devnet driver %q", cfg.Driver).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Close releases the database connections
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *Ledger) Address() string {
	return l.address
}

func (l *Ledger) ListRecordKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := l.db.WithContext(ctx).Model(&recordRow{}).Order("seq").Pluck("record_key", &keys).Error
	if err != nil {
		return nil, l.ledgerError(err, "list_record_keys", "")
	}
	return keys, nil
}

func (l *Ledger) GetRecord(ctx context.Context, key string) (*ledger.RawRecord, error) {
	row, err := l.findRecord(l.db.WithContext(ctx), key)
	if err != nil {
		return nil, l.ledgerError(err, "get_record", key)
	}
	return &ledger.RawRecord{
		Name:           row.Name,
		Description:    row.Description,
		Creator:        row.Creator,
		Timestamp:      row.Timestamp,
		PublicValue1:   row.PublicValue1,
		PublicValue2:   row.PublicValue2,
		IsVerified:     row.IsVerified,
		DecryptedValue: row.DecryptedValue,
	}, nil
}

func (l *Ledger) GetCiphertextHandle(ctx context.Context, key string) (fhe.Handle, error) {
	row, err := l.findRecord(l.db.WithContext(ctx), key)
	if err != nil {
		return "", l.ledgerError(err, "get_ciphertext_handle", key)
	}
	return fhe.Handle(row.Handle), nil
}

func (l *Ledger) findRecord(db *gorm.DB, key string) (*recordRow, error) {
	var row recordRow
	if err := db.Where("record_key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (l *Ledger) CreateRecord(ctx context.Context, p ledger.CreateParams) (ledger.TxHandle, error) {
	if p.Key == "" || p.EncryptedValue == "" {
		return "", errors.ValidationError("record key and encrypted value are required")
	}
	if p.PublicValue1 > math.MaxInt64 || p.PublicValue2 > math.MaxInt64 {
		return "", errors.ValidationError("public values out of range")
	}
	if l.checker != nil {
		if err := l.checker.VerifyInputProof(l.address, p.From, p.EncryptedValue, p.InputProof); err != nil {
			return "", l.ledgerError(errors.Join(ledger.ErrInvalidProof, err), "create_record", p.Key)
		}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	now := l.now()
	hash := newTxHash()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&recordRow{}).Where("record_key = ?", p.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ledger.ErrDuplicateKey
		}

		row := recordRow{
			RecordKey:    p.Key,
			Name:         p.Name,
			Description:  p.Description,
			Creator:      p.From,
			Handle:       string(p.EncryptedValue.Normalize()),
			Timestamp:    now.Unix(),
			PublicValue1: int64(p.PublicValue1),
			PublicValue2: int64(p.PublicValue2),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(l.newTxRow(hash, txKindCreate, p.Key, now)).Error
	})
	if err != nil {
		return "", l.ledgerError(err, "create_record", p.Key)
	}

	l.logger.Info("record created",
		logger.String("record_key", p.Key),
		logger.String("tx", hash))
	return ledger.TxHandle(hash), nil
}

func (l *Ledger) SubmitVerification(ctx context.Context, key string, clearValuesEncoded, proof []byte) (ledger.TxHandle, error) {
	values, err := fhe.DecodeClearValues(clearValuesEncoded)
	if err != nil || len(values) != 1 || values[0] > math.MaxInt64 {
		return "", l.ledgerError(ledger.ErrInvalidProof, "submit_verification", key)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	now := l.now()
	hash := newTxHash()
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := l.findRecord(tx, key)
		if err != nil {
			return err
		}
		if row.IsVerified {
			return ledger.ErrAlreadyVerified
		}
		if l.checker != nil {
			if err := l.checker.VerifyDecryptionProof(l.address, []fhe.Handle{fhe.Handle(row.Handle)}, clearValuesEncoded, proof); err != nil {
				return errors.Join(ledger.ErrInvalidProof, err)
			}
		}

		updates := map[string]any{
			"is_verified":     true,
			"decrypted_value": int64(values[0]),
			"verified_at":     now.UnixMilli(),
		}
		if err := tx.Model(&recordRow{}).Where("seq = ?", row.Seq).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(l.newTxRow(hash, txKindVerify, key, now)).Error
	})
	if err != nil {
		return "", l.ledgerError(err, "submit_verification", key)
	}

	l.logger.Info("record verified",
		logger.String("record_key", key),
		logger.String("tx", hash))
	return ledger.TxHandle(hash), nil
}

// AwaitFinality polls until the transaction's block time has elapsed
func (l *Ledger) AwaitFinality(ctx context.Context, txHandle ledger.TxHandle) error {
	var row txRow
	if err := l.db.WithContext(ctx).Where("hash = ?", string(txHandle)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = errors.Join(ledger.ErrTxFailed, errors.NewStd("unknown transaction"))
		}
		return l.ledgerError(err, "await_finality", "")
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		if l.now().UnixMilli() >= row.FinalAt {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component(componentName).
				Category(errors.CategoryFinality).
				Context("tx", string(txHandle)).
				Build()
		case <-ticker.C:
		}
	}
}

func (l *Ledger) newTxRow(hash, kind, key string, now time.Time) *txRow {
	return &txRow{
		Hash:        hash,
		Kind:        kind,
		RecordKey:   key,
		SubmittedAt: now.UnixMilli(),
		FinalAt:     now.Add(l.blockTime).UnixMilli(),
	}
}

func newTxHash() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}

// ledgerError keeps the ledger sentinels reachable through errors.Is while
// tagging the failure for the lifecycle taxonomy.
func (l *Ledger) ledgerError(err error, operation, key string) error {
	category := errors.CategoryLedger
	switch {
	case errors.Is(err, ledger.ErrRecordNotFound):
		category = errors.CategoryNotFound
	case errors.IsCategory(err, errors.CategoryValidation):
		return err
	}
	return errors.New(err).
		Component(componentName).
		Category(category).
		Context("operation", operation).
		RecordContext(key).
		Build()
}
