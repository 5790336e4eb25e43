package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"firestige.xyz/sipscan/internal/analyzer"
)

var (
	ruleHeavy = strings.Repeat("=", 50)
	ruleLight = strings.Repeat("-", 50)
)

func renderText(w io.Writer, rep Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "SIP Analysis Summary")
	fmt.Fprintln(bw, ruleHeavy)
	fmt.Fprintf(bw, "Analysis Date: %s\n", rep.AnalysedAt.Format(DateLayout))
	fmt.Fprintf(bw, "Input File: %s\n", rep.Input)
	fmt.Fprintf(bw, "Total SIP Packets: %d\n", rep.Summary.TotalRecords)
	fmt.Fprintf(bw, "REGISTER Messages: %d\n", rep.Summary.RegisterCount)
	fmt.Fprintf(bw, "INVITE Messages: %d\n", rep.Summary.InviteCount)
	if rep.Summary.Malformed > 0 {
		fmt.Fprintf(bw, "Malformed SIP Packets: %d\n", rep.Summary.Malformed)
	}
	fmt.Fprintln(bw, ruleHeavy)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Detailed SIP Message Information:")
	fmt.Fprintln(bw, ruleHeavy)
	for i := range rep.Findings {
		writeFinding(bw, &rep.Findings[i])
	}

	return bw.Flush()
}

func writeFinding(w io.Writer, f *analyzer.Finding) {
	fmt.Fprintf(w, "\nMessage Type: %s\n", f.Kind)
	fmt.Fprintf(w, "Timestamp: %s\n", f.Timestamp)
	writeHeader(w, "To", "To Header Parameters", f.To)
	writeHeader(w, "From", "From Header Parameters", f.From)
	writeHeader(w, "P-Access-Network-Info", "P-Access-Network-Info Parameters", f.PAccessNetworkInfo)
	writeHeader(w, "Cellular-Network-Info", "Cellular-Network-Info Parameters", f.CellularNetworkInfo)
	fmt.Fprintln(w, ruleLight)
}

func writeHeader(w io.Writer, name, paramsTitle string, h *analyzer.Header) {
	if h == nil {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", name, h.Raw)
	if !h.HasParams() {
		return
	}
	fmt.Fprintf(w, "%s:\n", paramsTitle)
	for _, p := range h.Params {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
