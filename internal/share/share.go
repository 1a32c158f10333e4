// Package share builds the links and QR codes used to invite people to a
// board.
package share

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Link is the public address of a board.
func Link(baseURL, boardID string) string {
	return strings.TrimRight(baseURL, "/") + "/board/" + url.PathEscape(boardID)
}

func invitation(title, link string) string {
	return fmt.Sprintf("Join my board %q on SmartBoard: %s", title, link)
}

// EmailURL opens a mail client with the invitation prefilled.
func EmailURL(title, link string) string {
	q := url.Values{}
	q.Set("subject", "Join my board: "+title)
	q.Set("body", fmt.Sprintf("Hi,\n\nI'd like you to collaborate on %q.\n\nOpen it here: %s\n", title, link))
	return "mailto:?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

func WhatsAppURL(title, link string) string {
	return "https://wa.me/?text=" + url.QueryEscape(invitation(title, link))
}

func TelegramURL(title, link string) string {
	q := url.Values{}
	q.Set("url", link)
	q.Set("text", fmt.Sprintf("Join my board %q on SmartBoard", title))
	return "https://t.me/share/url?" + q.Encode()
}

func TwitterURL(title, link string) string {
	q := url.Values{}
	q.Set("text", fmt.Sprintf("Collaborating on %q with SmartBoard", title))
	q.Set("url", link)
	return "https://twitter.com/intent/tweet?" + q.Encode()
}

// Channel is one way of sending the invitation.
type Channel struct {
	Name string
	URL  string
}

// Channels lists every share target for a board, in display order.
func Channels(title, link string) []Channel {
	return []Channel{
		{"Email", EmailURL(title, link)},
		{"WhatsApp", WhatsAppURL(title, link)},
		{"Telegram", TelegramURL(title, link)},
		{"Twitter", TwitterURL(title, link)},
	}
}

// QR renders link as a QR code made of block characters for a terminal.
func QR(link string) (string, error) {
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qr: %w", err)
	}
	return q.ToSmallString(false), nil
}

// PNGName is the default file name for a board's QR image.
func PNGName(boardID string) string {
	return "board-" + boardID + "-qr.png"
}

// WriteQRPNG writes link as a size x size PNG to path.
func WriteQRPNG(link, path string, size int) error {
	if size <= 0 {
		size = 256
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	if err := qrcode.WriteFile(link, qrcode.Medium, size, path); err != nil {
		return fmt.Errorf("write qr: %w", err)
	}
	return nil
}
