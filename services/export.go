package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Conversations"

// ExportConversations renders the (optionally filtered) conversation log as
// an .xlsx workbook. The export carries the full set the backend returned;
// the 50-row cap applies only to on-screen rendering.
func (c *Controller) ExportConversations(ctx context.Context, search string) ([]byte, int, error) {
	entries, err := c.api.Conversations(ctx, search)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, 0, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"User Query", "Bot Reply", "Timestamp", "Language", "Tokens"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, 0, err
		}
	}

	for row, e := range entries {
		values := []any{e.UserQuery, e.BotReply, e.Timestamp, e.Language, e.Tokens}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, 0, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), len(entries), nil
}
