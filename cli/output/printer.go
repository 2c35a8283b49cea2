package output

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hadaraza/Client-Server-HR/pkg/stclient"
	"github.com/pterm/pterm"
)

// Printer renders operator-facing messages without going through the logger.
type Printer struct {
	mu sync.Mutex
}

func NewPrinter() *Printer {
	return &Printer{}
}

func (p *Printer) Info(msg string, fields map[string]any) {
	p.printWith(pterm.Info, msg, fields)
}

func (p *Printer) Success(msg string, fields map[string]any) {
	p.printWith(pterm.Success, msg, fields)
}

func (p *Printer) Warn(msg string, fields map[string]any) {
	p.printWith(pterm.Warning, msg, fields)
}

func (p *Printer) printWith(logger pterm.PrefixPrinter, msg string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Println(msg)
	if len(fields) == 0 {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pterm.Printf("  %s: %v\n", k, fields[k])
	}
}

// RenderRoundSummary prints the post-round statistics block.
func (p *Printer) RenderRoundSummary(stats *stclient.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.DefaultSection.Println("Speed Test Statistics")

	rows := pterm.TableData{{"Metric", "Value"}}

	if mean, ok := stats.MeanTCP(); ok {
		rows = append(rows, []string{"TCP transfers", fmt.Sprintf("%d", len(stats.TCPDurations))})
		rows = append(rows, []string{"TCP average time", fmt.Sprintf("%.3fs", mean.Seconds())})
		if speed, ok := stats.MeanTCPSpeed(); ok {
			rows = append(rows, []string{"TCP average speed", fmt.Sprintf("%.2f bits/sec", speed)})
		} else {
			rows = append(rows, []string{"TCP average speed", "instantaneous"})
		}
	}

	if mean, ok := stats.MeanUDP(); ok {
		rows = append(rows, []string{"UDP transfers", fmt.Sprintf("%d", len(stats.UDPDurations))})
		rows = append(rows, []string{"UDP average time", fmt.Sprintf("%.3fs", mean.Seconds())})
		if speed, ok := stats.MeanUDPSpeed(); ok {
			rows = append(rows, []string{"UDP average speed", fmt.Sprintf("%.2f bits/sec", speed)})
		}
		if loss, ok := stats.UDPLossRate(); ok {
			rows = append(rows, []string{"UDP packet loss", fmt.Sprintf("%.2f%%", loss*100)})
		}
		if stats.NoDataTransfers > 0 {
			rows = append(rows, []string{"UDP transfers with no data", fmt.Sprintf("%d", stats.NoDataTransfers)})
		}
	}

	if len(rows) == 1 {
		pterm.Warning.Println("no transfer records for this round")
		return
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		pterm.Error.Printf("render statistics: %v\n", err)
	}
}
