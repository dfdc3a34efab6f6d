package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS questions (
    id            TEXT PRIMARY KEY,
    prompt        TEXT NOT NULL,
    title         TEXT,
    sql_text      TEXT,
    job_id        TEXT,
    deduplicated  BOOLEAN NOT NULL DEFAULT FALSE,
    canonical_id  TEXT,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_job ON questions (job_id);

CREATE TABLE IF NOT EXISTS jobs (
    id             TEXT PRIMARY KEY,
    job_type       TEXT NOT NULL,
    fingerprint    TEXT NOT NULL,
    payload        JSONB,
    created_at     TIMESTAMPTZ NOT NULL,
    started_at     TIMESTAMPTZ,
    finished_at    TIMESTAMPTZ,
    failure_reason TEXT,
    deduplicated   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_jobs_type_fingerprint ON jobs (job_type, fingerprint);

CREATE TABLE IF NOT EXISTS results (
    job_id       TEXT PRIMARY KEY REFERENCES jobs (id),
    result       JSONB,
    chart_config JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
