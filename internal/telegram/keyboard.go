package telegram

import (
	"strconv"

	"github.com/go-telegram/bot/models"
)

// noopData is the callback data of buttons that only acknowledge a press.
const noopData = "cur"

func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: callbackData}
}

func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, URL: url}
}

func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// NoopButton is a label-only button, e.g. a disabled action or a page counter.
func NoopButton(text string) models.InlineKeyboardButton {
	return InlineButton(text, noopData)
}

// PaginationRow renders "⬅️ n/total ➡️" with callbacks "<prefix>_<page>".
// Arrows are omitted on the first and last page.
func PaginationRow(page, total int, prefix string) []models.InlineKeyboardButton {
	pageData := func(p int) string { return prefix + "_" + strconv.Itoa(p) }

	row := make([]models.InlineKeyboardButton, 0, 3)
	if page > 0 {
		row = append(row, InlineButton("⬅️", pageData(page-1)))
	}
	row = append(row, NoopButton(strconv.Itoa(page+1)+"/"+strconv.Itoa(total)))
	if page < total-1 {
		row = append(row, InlineButton("➡️", pageData(page+1)))
	}
	return row
}
