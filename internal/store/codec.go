package store

import (
	"strconv"
	"time"

	"github.com/router-for-me/QuotaCardService/internal/models"
)

// Hash field encoding mirrors the administrative layout: floats and ints as
// decimal strings, timestamps as RFC 3339, absent timestamps as "".

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func cardToMap(card *models.Card) map[string]string {
	return map[string]string{
		"id":                 card.ID,
		"code":               card.Code,
		"type":               card.Type,
		"quotaAmount":        formatFloat(card.QuotaAmount),
		"timeAmount":         strconv.Itoa(card.TimeAmount),
		"timeUnit":           card.TimeUnit,
		"status":             card.Status,
		"createdBy":          card.CreatedBy,
		"createdAt":          formatTime(card.CreatedAt),
		"expiresAt":          formatTimePtr(card.ExpiresAt),
		"note":               card.Note,
		"redeemedBy":         card.RedeemedBy,
		"redeemedByUsername": card.RedeemedByUsername,
		"redeemedApiKeyId":   card.RedeemedAPIKeyID,
		"redeemedApiKeyName": card.RedeemedAPIKeyName,
		"redeemedAt":         formatTimePtr(card.RedeemedAt),
		"revokedAt":          formatTimePtr(card.RevokedAt),
		"revokedBy":          card.RevokedBy,
		"revokeReason":       card.RevokeReason,
	}
}

func cardFromMap(data map[string]string) *models.Card {
	return &models.Card{
		ID:                 data["id"],
		Code:               data["code"],
		Type:               data["type"],
		QuotaAmount:        parseFloat(data["quotaAmount"]),
		TimeAmount:         parseInt(data["timeAmount"]),
		TimeUnit:           data["timeUnit"],
		Status:             data["status"],
		CreatedBy:          data["createdBy"],
		CreatedAt:          parseTime(data["createdAt"]),
		ExpiresAt:          parseTimePtr(data["expiresAt"]),
		Note:               data["note"],
		RedeemedBy:         data["redeemedBy"],
		RedeemedByUsername: data["redeemedByUsername"],
		RedeemedAPIKeyID:   data["redeemedApiKeyId"],
		RedeemedAPIKeyName: data["redeemedApiKeyName"],
		RedeemedAt:         parseTimePtr(data["redeemedAt"]),
		RevokedAt:          parseTimePtr(data["revokedAt"]),
		RevokedBy:          data["revokedBy"],
		RevokeReason:       data["revokeReason"],
	}
}

func redemptionToMap(rec *models.Redemption) map[string]string {
	return map[string]string{
		"id":                  rec.ID,
		"cardId":              rec.CardID,
		"cardCode":            rec.CardCode,
		"cardType":            rec.CardType,
		"userId":              rec.UserID,
		"username":            rec.Username,
		"apiKeyId":            rec.APIKeyID,
		"apiKeyName":          rec.APIKeyName,
		"quotaAdded":          formatFloat(rec.QuotaAdded),
		"timeAdded":           strconv.Itoa(rec.TimeAdded),
		"timeUnit":            rec.TimeUnit,
		"beforeQuota":         formatFloat(rec.BeforeQuota),
		"afterQuota":          formatFloat(rec.AfterQuota),
		"beforeExpiry":        formatTimePtr(rec.BeforeExpiry),
		"afterExpiry":         formatTimePtr(rec.AfterExpiry),
		"timestamp":           formatTime(rec.Timestamp),
		"status":              rec.Status,
		"revokedAt":           formatTimePtr(rec.RevokedAt),
		"revokedBy":           rec.RevokedBy,
		"revokeReason":        rec.RevokeReason,
		"actualQuotaDeducted": formatFloat(rec.ActualQuotaDeducted),
	}
}

func redemptionFromMap(data map[string]string) *models.Redemption {
	return &models.Redemption{
		ID:                  data["id"],
		CardID:              data["cardId"],
		CardCode:            data["cardCode"],
		CardType:            data["cardType"],
		UserID:              data["userId"],
		Username:            data["username"],
		APIKeyID:            data["apiKeyId"],
		APIKeyName:          data["apiKeyName"],
		QuotaAdded:          parseFloat(data["quotaAdded"]),
		TimeAdded:           parseInt(data["timeAdded"]),
		TimeUnit:            data["timeUnit"],
		BeforeQuota:         parseFloat(data["beforeQuota"]),
		AfterQuota:          parseFloat(data["afterQuota"]),
		BeforeExpiry:        parseTimePtr(data["beforeExpiry"]),
		AfterExpiry:         parseTimePtr(data["afterExpiry"]),
		Timestamp:           parseTime(data["timestamp"]),
		Status:              data["status"],
		RevokedAt:           parseTimePtr(data["revokedAt"]),
		RevokedBy:           data["revokedBy"],
		RevokeReason:        data["revokeReason"],
		ActualQuotaDeducted: parseFloat(data["actualQuotaDeducted"]),
	}
}
