package storage

const itemColumns = `id, name, quantity, estimated_price_cents, actual_price_cents,
	labels, is_purchased, purchased_at, created_at`

const (
	listItemsQuery = `SELECT ` + itemColumns + ` FROM shopping_items
	ORDER BY created_at DESC, id DESC`

	getItemQuery = `SELECT ` + itemColumns + ` FROM shopping_items WHERE id = ?`

	insertItemQuery = `INSERT INTO shopping_items
	(name, quantity, estimated_price_cents, actual_price_cents, labels, is_purchased, purchased_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	updateItemQuery = `UPDATE shopping_items SET
	name = ?, quantity = ?, estimated_price_cents = ?, actual_price_cents = ?,
	labels = ?, is_purchased = ?, purchased_at = ?
	WHERE id = ?`

	deleteItemQuery = `DELETE FROM shopping_items WHERE id = ?`

	deleteAllItemsQuery = `DELETE FROM shopping_items`

	// Backslash escapes LIKE wildcards in the user's text.
	searchUnpurchasedQuery = `SELECT ` + itemColumns + ` FROM shopping_items
	WHERE is_purchased = 0 AND lower(name) LIKE ? ESCAPE '\'
	ORDER BY name ASC`

	markPurchasedQuery = `UPDATE shopping_items
	SET is_purchased = 1, actual_price_cents = ?, purchased_at = ?
	WHERE id = ?`

	listLabelsQuery = `SELECT id, name, color FROM labels ORDER BY name ASC`

	getLabelQuery = `SELECT id, name, color FROM labels WHERE id = ?`

	insertLabelQuery = `INSERT INTO labels (name, color) VALUES (?, ?)`

	updateLabelQuery = `UPDATE labels SET name = ?, color = ? WHERE id = ?`

	deleteLabelQuery = `DELETE FROM labels WHERE id = ?`

	countLabelsByNameQuery = `SELECT COUNT(*) FROM labels WHERE name = ?`
)
