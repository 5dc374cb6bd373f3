package store

// schemaSQL is the in-memory schema. Tags and metadata are stored as JSON
// text; embedding is a little-endian float32 blob in sqlite-vec's format.
//
// Link uniqueness is (from_id, to_id): a given ordered pair carries at most
// one type at a time, and re-inserting the same pair is a no-op.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowledge (
	id        TEXT PRIMARY KEY,
	category  TEXT NOT NULL,
	title     TEXT NOT NULL,
	tags      TEXT NOT NULL DEFAULT '[]',
	content   TEXT NOT NULL,
	metadata  TEXT,
	embedding BLOB,
	created   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	from_id   TEXT NOT NULL,
	to_id     TEXT NOT NULL,
	link_type TEXT NOT NULL DEFAULT 'related',
	PRIMARY KEY (from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_id);

CREATE TABLE IF NOT EXISTS kb_access (
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	session   INTEGER NOT NULL,
	op        TEXT NOT NULL,
	id        TEXT NOT NULL
);
`
