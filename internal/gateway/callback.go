package gateway

import (
	"net/url"
	"strconv"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/signature"
)

type VerdictKind string

const (
	VerdictSuccess   VerdictKind = "SUCCESS"
	VerdictFailed    VerdictKind = "FAILED"
	VerdictUntrusted VerdictKind = "UNTRUSTED"
)

// Verdict is the trusted interpretation of a gateway redirect. Untrusted
// must be handled exactly like Failed by callers; the distinction exists
// only for logs and metrics.
type Verdict struct {
	Kind    VerdictKind
	TransID string
	Amount  int64
}

// Verifier recomputes gateway callback checksums. Pure, no writes.
type Verifier struct {
	cfg     config.GatewayConfig
	sandbox bool
}

func NewVerifier(cfg config.GatewayConfig, sandbox bool) *Verifier {
	return &Verifier{cfg: cfg, sandbox: sandbox}
}

// Checksum covers these fields, joined in this order. The gateway signs the
// concatenation with key2.
var callbackFields = []string{"appid", "apptransid", "pmcid", "bankcode", "amount", "discountamount", "status"}

// Verify derives a trusted verdict from redirect query parameters. A
// missing field skips checksum verification entirely: in production that is
// Untrusted, in sandbox the raw status field is honored so gateway test
// traffic (which omits some fields) can complete.
func (v *Verifier) Verify(params url.Values) Verdict {
	transID := params.Get("apptransid")

	vals := make([]string, 0, len(callbackFields))
	for _, f := range callbackFields {
		if !params.Has(f) {
			if v.sandbox {
				return v.statusOnly(params, transID)
			}
			return Verdict{Kind: VerdictUntrusted, TransID: transID}
		}
		vals = append(vals, params.Get(f))
	}
	if !params.Has("checksum") {
		if v.sandbox {
			return v.statusOnly(params, transID)
		}
		return Verdict{Kind: VerdictUntrusted, TransID: transID}
	}

	canonical := signature.Canonical(vals...)
	if !signature.Verify(v.cfg.Key2, canonical, params.Get("checksum")) {
		return Verdict{Kind: VerdictUntrusted, TransID: transID}
	}

	if params.Get("status") != "1" {
		return Verdict{Kind: VerdictFailed, TransID: transID}
	}

	amount, err := strconv.ParseInt(params.Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return Verdict{Kind: VerdictUntrusted, TransID: transID}
	}
	return Verdict{Kind: VerdictSuccess, TransID: transID, Amount: amount}
}

func (v *Verifier) statusOnly(params url.Values, transID string) Verdict {
	status := params.Get("status")
	if status == "" {
		status = params.Get("return_code")
	}
	if status != "1" {
		return Verdict{Kind: VerdictFailed, TransID: transID}
	}
	amount, err := strconv.ParseInt(params.Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return Verdict{Kind: VerdictFailed, TransID: transID}
	}
	return Verdict{Kind: VerdictSuccess, TransID: transID, Amount: amount}
}
