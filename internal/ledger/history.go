package ledger

import "github.com/stwalsh4118/rentledger/api/internal/models"

// AppendHistory appends entry and keeps only the newest MaxPaymentHistory
// entries, dropping the oldest first. The input slice is not modified.
func AppendHistory(history []models.PaymentHistoryEntry, entry models.PaymentHistoryEntry) []models.PaymentHistoryEntry {
	out := make([]models.PaymentHistoryEntry, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, entry)
	if over := len(out) - models.MaxPaymentHistory; over > 0 {
		out = out[over:]
	}
	return out
}
