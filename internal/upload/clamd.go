package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ClamdScanner 通过 clamd 的 INSTREAM 扫描附件。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 连接到给定地址，例如 tcp://clamav:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

// Scan 实现 Scanner。
func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) (bool, error) {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return false, fmt.Errorf("clamd scan stream: %w", err)
	}

	clean := true
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case result, ok := <-results:
			if !ok {
				return clean, nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				clean = false
			default:
				return false, fmt.Errorf("clamd: %s %s", result.Status, result.Description)
			}
		}
	}
}
