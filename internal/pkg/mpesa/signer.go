package mpesa

import (
	"encoding/base64"
	"time"
)

// Daraja expects the STK password timestamp in Nairobi local time.
var nairobi = loadNairobi()

func loadNairobi() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		// EAT has no DST; a fixed offset is equivalent.
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// Sign builds the per-request credential pair: a 14-digit timestamp and
// base64(shortcode + passkey + timestamp). Deterministic given its inputs.
func Sign(shortcode, passkey string, at time.Time) (timestamp, password string) {
	timestamp = at.In(nairobi).Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
	return timestamp, password
}
