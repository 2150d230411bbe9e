package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/httpkit"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

const (
	tokenHeader             = "X-Webhook-Token"
	calendlySignatureHeader = "Calendly-Webhook-Signature"
	maxBodyBytes            = 1 << 20
	signatureTolerance      = 5 * time.Minute
)

// RequireToken checks the shared webhook token from the X-Webhook-Token
// header or the token query parameter. An empty token disables the check.
// Rejected requests get rejectStatus; 200 acknowledges and drops them so
// the provider does not retry.
func RequireToken(token string, rejectStatus int, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(tokenHeader)
		if got == "" {
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
			c.Next()
			return
		}
		log.Warn("webhook token rejected", "path", c.FullPath(), "clientIp", c.ClientIP())
		if rejectStatus == http.StatusOK {
			httpkit.Ack(c)
			c.Abort()
			return
		}
		httpkit.Error(c, rejectStatus, "invalid webhook token", nil)
		c.Abort()
	}
}

// VerifyCalendlySignature checks the Calendly-Webhook-Signature header
// (t=<unix>,v1=<hex hmac-sha256 of "t.body">). Invalid deliveries are
// acknowledged and dropped. An empty key disables the check.
func VerifyCalendlySignature(signingKey string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if signingKey == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			httpkit.Ack(c)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !validCalendlySignature(c.GetHeader(calendlySignatureHeader), body, signingKey, time.Now()) {
			log.Warn("calendly signature rejected", "clientIp", c.ClientIP())
			httpkit.Ack(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func validCalendlySignature(header string, body []byte, key string, now time.Time) bool {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if d := now.Sub(time.Unix(unix, 0)); d > signatureTolerance || d < -signatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
