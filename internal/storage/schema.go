package storage

const schema = `
-- The 'kv' table holds serialized values addressed by a well-known key.
-- 'version' is bumped on every write and used for compare-and-swap.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    version INTEGER NOT NULL,
    updated_at DATETIME NOT NULL
);
`
