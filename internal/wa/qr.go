package wa

import (
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
)

// WriteQRArtifact renders the QR token as qr.png inside the number's
// session directory so an operator can scan it without the admin UI.
func WriteQRArtifact(sessionDir, token string) error {
	return qrcode.WriteFile(token, qrcode.Medium, 512, filepath.Join(sessionDir, "qr.png"))
}
