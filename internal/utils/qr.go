package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// QRToken returns the hex HMAC-SHA256 of the reservation id under the
// server secret.  The token is deterministic, so re-generating it for
// verification never needs database state.
func QRToken(secret string, reservationID uint64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatUint(reservationID, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyQRToken recomputes the expected token and compares it in
// constant time.  Any decode failure counts as a mismatch.
func VerifyQRToken(secret string, reservationID uint64, token string) bool {
	got, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatUint(reservationID, 10)))
	return hmac.Equal(got, mac.Sum(nil))
}

// qrPayload is the document encoded into the QR code handed to the
// driver at reservation time.
type qrPayload struct {
	ReservationID uint64 `json:"reservation_id"`
	Token         string `json:"token"`
}

// QRPayload packs the reservation id and its integrity token into the
// opaque base64 string persisted on the reservation and rendered as a
// QR code by clients.
func QRPayload(reservationID uint64, token string) string {
	b, _ := json.Marshal(qrPayload{ReservationID: reservationID, Token: token})
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeQRPayload unpacks a scanned payload back into its reservation
// id and token.  It returns false for anything that is not a valid
// payload.
func DecodeQRPayload(payload string) (uint64, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return 0, "", false
	}
	var p qrPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ReservationID == 0 || p.Token == "" {
		return 0, "", false
	}
	return p.ReservationID, p.Token, true
}
