package core

// BudgetInfo summarizes a filtered item view. It is derived, never stored.
type BudgetInfo struct {
	TotalEstimated     Money
	TotalActual        Money
	Remaining          Money
	PurchasedCount     int
	TotalCount         int
	ProgressPercentage float64 // ratio of counts, 0-100
}

// Summarize computes budget totals over items.
func Summarize(items []ShoppingItem) BudgetInfo {
	var info BudgetInfo
	for _, it := range items {
		info.TotalEstimated = info.TotalEstimated.Add(it.LineEstimate())
		info.TotalActual = info.TotalActual.Add(it.LineActual())
		if it.IsPurchased {
			info.PurchasedCount++
		}
	}
	info.TotalCount = len(items)
	info.Remaining = info.TotalEstimated.Sub(info.TotalActual)
	if info.TotalCount > 0 {
		info.ProgressPercentage = 100 * float64(info.PurchasedCount) / float64(info.TotalCount)
	}
	return info
}
