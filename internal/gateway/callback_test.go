package gateway_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/signature"
)

const callbackKey = "cb-key"

func signedCallback(t *testing.T, status string) url.Values {
	t.Helper()
	params := url.Values{}
	params.Set("appid", "2554")
	params.Set("apptransid", "240115_000042")
	params.Set("pmcid", "38")
	params.Set("bankcode", "VCB")
	params.Set("amount", "250000")
	params.Set("discountamount", "0")
	params.Set("status", status)

	canonical := signature.Canonical(
		params.Get("appid"), params.Get("apptransid"), params.Get("pmcid"),
		params.Get("bankcode"), params.Get("amount"), params.Get("discountamount"),
		params.Get("status"))
	checksum, err := signature.Sign(callbackKey, canonical)
	require.NoError(t, err)
	params.Set("checksum", checksum)
	return params
}

func prodVerifier() *gateway.Verifier {
	return gateway.NewVerifier(config.GatewayConfig{AppID: "2554", Key2: callbackKey}, false)
}

func TestVerify_Success(t *testing.T) {
	v := prodVerifier().Verify(signedCallback(t, "1"))
	assert.Equal(t, gateway.VerdictSuccess, v.Kind)
	assert.Equal(t, int64(250000), v.Amount)
	assert.Equal(t, "240115_000042", v.TransID)
}

func TestVerify_FailedStatus(t *testing.T) {
	v := prodVerifier().Verify(signedCallback(t, "-49"))
	assert.Equal(t, gateway.VerdictFailed, v.Kind)
}

func TestVerify_TamperedChecksumIsUntrusted(t *testing.T) {
	params := signedCallback(t, "1")
	checksum := params.Get("checksum")
	params.Set("checksum", "0"+checksum[1:])
	if checksum[0] == '0' {
		params.Set("checksum", "1"+checksum[1:])
	}

	v := prodVerifier().Verify(params)
	assert.Equal(t, gateway.VerdictUntrusted, v.Kind)
}

func TestVerify_TamperedAmountIsUntrusted(t *testing.T) {
	params := signedCallback(t, "1")
	params.Set("amount", "999250000")

	v := prodVerifier().Verify(params)
	assert.Equal(t, gateway.VerdictUntrusted, v.Kind)
}

func TestVerify_MissingFieldInProductionIsUntrusted(t *testing.T) {
	for _, field := range []string{"appid", "apptransid", "pmcid", "bankcode", "amount", "discountamount", "status", "checksum"} {
		params := signedCallback(t, "1")
		params.Del(field)
		v := prodVerifier().Verify(params)
		assert.Equal(t, gateway.VerdictUntrusted, v.Kind, "missing %s", field)
	}
}

func TestVerify_MissingFieldInSandboxFallsBackToStatus(t *testing.T) {
	v := gateway.NewVerifier(config.GatewayConfig{AppID: "2554", Key2: callbackKey}, true)

	params := signedCallback(t, "1")
	params.Del("checksum")
	verdict := v.Verify(params)
	assert.Equal(t, gateway.VerdictSuccess, verdict.Kind)
	assert.Equal(t, int64(250000), verdict.Amount)

	params = signedCallback(t, "0")
	params.Del("bankcode")
	assert.Equal(t, gateway.VerdictFailed, v.Verify(params).Kind)
}

func TestVerify_SandboxStillVerifiesCompletePayloads(t *testing.T) {
	v := gateway.NewVerifier(config.GatewayConfig{AppID: "2554", Key2: callbackKey}, true)

	params := signedCallback(t, "1")
	params.Set("checksum", "deadbeef")
	assert.Equal(t, gateway.VerdictUntrusted, v.Verify(params).Kind)
}
