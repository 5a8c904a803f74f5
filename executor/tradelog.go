package executor

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/flasharb/types"
)

var tradeLogHeader = []string{"timestamp", "kind", "path", "amount", "txHash", "status"}

// TradeLog appends one CSV row per broadcast transaction. Every row
// is flushed to disk before Record returns so a crash never loses a
// trade that actually went out.
type TradeLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// OpenTradeLog opens or creates the CSV file at path, writing the
// header only when the file is new.
func OpenTradeLog(path string) (*TradeLog, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade log: %w", err)
	}

	t := &TradeLog{file: f, writer: csv.NewWriter(f)}
	if fresh {
		if err := t.writer.Write(tradeLogHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write trade log header: %w", err)
		}
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return t, nil
}

// Record appends one trade row and flushes it.
func (t *TradeLog) Record(trial *types.Trial, txHash common.Hash, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		trial.Path.Kind.String(),
		trial.Path.Symbols(),
		trial.Amount.String(),
		txHash.Hex(),
		status,
	}
	if err := t.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write trade row: %w", err)
	}
	t.writer.Flush()
	return t.writer.Error()
}

// Close flushes and closes the underlying file.
func (t *TradeLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writer.Flush()
	if err := t.writer.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
