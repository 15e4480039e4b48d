package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"driverpay.service/internal/core/model"
)

func (s *ShiftService) chatName(chatID int64) string {
	if name, ok := s.chatNames[chatID]; ok {
		return name
	}
	return fmt.Sprintf("%d", chatID)
}

// buildReport renders the end-of-shift report: overall totals, entry count,
// then the entries grouped per channel in first-seen order.
func (s *ShiftService) buildReport(driverID int64, driverName string, entries []*model.Entry) string {
	income, cash := decimal.Zero, decimal.Zero
	for _, e := range entries {
		income = income.Add(e.Earned)
		cash = cash.Add(e.Cash)
	}
	balance := cash.Sub(income).Round(2)

	lines := []string{
		s.now().Format("02.01.2006"),
		fmt.Sprintf("%s (id:%d)", driverName, driverID),
		"",
		fmt.Sprintf("Доход: %s BYN", income.StringFixed(2)),
		fmt.Sprintf("Наличные: %s BYN", cash.StringFixed(2)),
		fmt.Sprintf("Баланс: %s BYN", balance.StringFixed(2)),
		"",
		fmt.Sprintf("Количество: %d", len(entries)),
		"",
	}

	var chatOrder []int64
	byChat := map[int64][]*model.Entry{}
	for _, e := range entries {
		if _, seen := byChat[e.ChatID]; !seen {
			chatOrder = append(chatOrder, e.ChatID)
		}
		byChat[e.ChatID] = append(byChat[e.ChatID], e)
	}
	for _, chatID := range chatOrder {
		lines = append(lines, s.chatName(chatID)+":")
		for _, e := range byChat[chatID] {
			lines = append(lines, fmt.Sprintf(" - %s (%s BYN, cash %s)",
				e.Text, e.Earned.StringFixed(2), e.Cash.StringFixed(2)))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
