package sale

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"tokensale/core/types"
	"tokensale/storage"
)

var (
	receiptPrefix   = []byte("sale/receipt/")
	receiptIndexKey = []byte("sale/receipt/index")
)

// Receipt is the audit record written for every settled purchase.
type Receipt struct {
	ID           string
	Payer        types.Address
	Recipient    types.Address
	PaymentIn    uint64
	AssetOut     uint64
	PricePerUnit uint64
	UnitSize     uint64
	CreatedAt    int64
}

// Copy returns a value copy so callers cannot mutate stored records.
func (r *Receipt) Copy() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

type storedReceipt struct {
	ID           string
	Payer        types.Address
	Recipient    types.Address
	PaymentIn    uint64
	AssetOut     uint64
	PricePerUnit uint64
	UnitSize     uint64
	CreatedAt    uint64
}

type receiptIndexEntry struct {
	ID        string
	CreatedAt uint64
}

// ReceiptLedger persists purchase receipts append-only in the key-value
// store, with a time-ordered index for pagination and CSV export.
type ReceiptLedger struct {
	kv storage.KVStore
}

// NewReceiptLedger constructs a ledger bound to the provided storage backend.
func NewReceiptLedger(kv storage.KVStore) *ReceiptLedger {
	return &ReceiptLedger{kv: kv}
}

// Put stores the receipt, enforcing append-only semantics keyed by ID.
func (l *ReceiptLedger) Put(receipt *Receipt) error {
	if l == nil || l.kv == nil {
		return fmt.Errorf("sale: receipt ledger not initialised")
	}
	if receipt == nil {
		return fmt.Errorf("sale: nil receipt")
	}
	id := strings.TrimSpace(receipt.ID)
	if id == "" {
		return fmt.Errorf("sale: receipt id required")
	}
	key := receiptKey(id)
	var existing storedReceipt
	ok, err := l.kv.KVGet(key, &existing)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("sale: receipt %s already exists", id)
	}
	stored := storedReceipt{
		ID:           id,
		Payer:        receipt.Payer,
		Recipient:    receipt.Recipient,
		PaymentIn:    receipt.PaymentIn,
		AssetOut:     receipt.AssetOut,
		PricePerUnit: receipt.PricePerUnit,
		UnitSize:     receipt.UnitSize,
	}
	if receipt.CreatedAt > 0 {
		stored.CreatedAt = uint64(receipt.CreatedAt)
	}
	if err := l.kv.KVPut(key, stored); err != nil {
		return err
	}
	entry := receiptIndexEntry{ID: id, CreatedAt: stored.CreatedAt}
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return l.kv.KVAppend(receiptIndexKey, encoded)
}

// Get retrieves a receipt by identifier.
func (l *ReceiptLedger) Get(id string) (*Receipt, bool, error) {
	if l == nil || l.kv == nil {
		return nil, false, fmt.Errorf("sale: receipt ledger not initialised")
	}
	var stored storedReceipt
	ok, err := l.kv.KVGet(receiptKey(id), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	receipt, err := fromStoredReceipt(&stored)
	if err != nil {
		return nil, false, err
	}
	return receipt, true, nil
}

// List returns receipts within the inclusive timestamp window, oldest first.
// The cursor is the ID of the last item from the previous page; an empty
// returned cursor means the listing is exhausted.
func (l *ReceiptLedger) List(startTs, endTs int64, cursor string, limit int) ([]*Receipt, string, error) {
	if l == nil || l.kv == nil {
		return nil, "", fmt.Errorf("sale: receipt ledger not initialised")
	}
	entries, err := l.loadIndex()
	if err != nil {
		return nil, "", err
	}
	filtered := make([]receiptIndexEntry, 0, len(entries))
	for _, entry := range entries {
		createdAt, err := uint64ToInt64(entry.CreatedAt)
		if err != nil {
			return nil, "", fmt.Errorf("sale: receipt index entry: %w", err)
		}
		if startTs != 0 && createdAt < startTs {
			continue
		}
		if endTs != 0 && createdAt > endTs {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt == filtered[j].CreatedAt {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].CreatedAt < filtered[j].CreatedAt
	})
	startIdx := 0
	if cursorID := strings.TrimSpace(cursor); cursorID != "" {
		for i, entry := range filtered {
			if entry.ID == cursorID {
				startIdx = i + 1
				break
			}
		}
	}
	pageSize := limit
	if pageSize <= 0 {
		pageSize = len(filtered) - startIdx
	}
	receipts := make([]*Receipt, 0, pageSize)
	nextCursor := ""
	for i := startIdx; i < len(filtered) && len(receipts) < pageSize; i++ {
		receipt, ok, err := l.Get(filtered[i].ID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		receipts = append(receipts, receipt)
		nextCursor = filtered[i].ID
	}
	if startIdx+len(receipts) >= len(filtered) {
		nextCursor = ""
	}
	return receipts, nextCursor, nil
}

// ExportCSV generates a deterministic CSV audit export for the timestamp
// window, returned base64 encoded alongside the row count and totals.
func (l *ReceiptLedger) ExportCSV(startTs, endTs int64) (string, int, uint64, uint64, error) {
	receipts, _, err := l.List(startTs, endTs, "", 0)
	if err != nil {
		return "", 0, 0, 0, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"receiptId", "payer", "recipient", "paymentIn", "assetOut", "pricePerUnit", "unitSize", "createdAt"}
	if err := writer.Write(header); err != nil {
		return "", 0, 0, 0, err
	}
	var totalIn, totalOut uint64
	for _, receipt := range receipts {
		totalIn += receipt.PaymentIn
		totalOut += receipt.AssetOut
		row := []string{
			receipt.ID,
			receipt.Payer.Hex(),
			receipt.Recipient.Hex(),
			strconv.FormatUint(receipt.PaymentIn, 10),
			strconv.FormatUint(receipt.AssetOut, 10),
			strconv.FormatUint(receipt.PricePerUnit, 10),
			strconv.FormatUint(receipt.UnitSize, 10),
			strconv.FormatInt(receipt.CreatedAt, 10),
		}
		if err := writer.Write(row); err != nil {
			return "", 0, 0, 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, 0, 0, err
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return encoded, len(receipts), totalIn, totalOut, nil
}

func (l *ReceiptLedger) loadIndex() ([]receiptIndexEntry, error) {
	var raw [][]byte
	if err := l.kv.KVGetList(receiptIndexKey, &raw); err != nil {
		return nil, err
	}
	entries := make([]receiptIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry receiptIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func receiptKey(id string) []byte {
	trimmed := strings.TrimSpace(id)
	buf := make([]byte, len(receiptPrefix)+len(trimmed))
	copy(buf, receiptPrefix)
	copy(buf[len(receiptPrefix):], trimmed)
	return buf
}

func fromStoredReceipt(stored *storedReceipt) (*Receipt, error) {
	if stored == nil {
		return nil, fmt.Errorf("sale: nil stored receipt")
	}
	createdAt, err := uint64ToInt64(stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("sale: receipt created at: %w", err)
	}
	return &Receipt{
		ID:           stored.ID,
		Payer:        stored.Payer,
		Recipient:    stored.Recipient,
		PaymentIn:    stored.PaymentIn,
		AssetOut:     stored.AssetOut,
		PricePerUnit: stored.PricePerUnit,
		UnitSize:     stored.UnitSize,
		CreatedAt:    createdAt,
	}, nil
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}
