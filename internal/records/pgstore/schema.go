package pgstore

// Schema creates all tables used by the store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS public.exercise
(
    id            BIGSERIAL PRIMARY KEY,
    owner_user_id BIGINT,
    name          VARCHAR NOT NULL,
    type          VARCHAR NOT NULL DEFAULT 'regular'
);

CREATE TABLE IF NOT EXISTS public.lift_log
(
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT      NOT NULL,
    exercise_id BIGINT      NOT NULL REFERENCES public.exercise (id),
    logged_at   TIMESTAMPTZ NOT NULL,
    sets        JSONB       NOT NULL DEFAULT '[]',
    is_pr       BOOLEAN     NOT NULL DEFAULT FALSE,
    pr_count    INTEGER     NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS ix_lift_log_timeline
    ON public.lift_log (user_id, exercise_id, logged_at, id)
    WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS public.personal_record
(
    id                   BIGSERIAL PRIMARY KEY,
    user_id              BIGINT           NOT NULL,
    exercise_id          BIGINT           NOT NULL,
    category             VARCHAR          NOT NULL,
    reps                 INTEGER          NOT NULL DEFAULT 0,
    weight               DOUBLE PRECISION NOT NULL DEFAULT 0,
    lift_log_id          BIGINT           NOT NULL REFERENCES public.lift_log (id),
    value                DOUBLE PRECISION NOT NULL,
    previous_id          BIGINT REFERENCES public.personal_record (id) ON DELETE SET NULL,
    previous_lift_log_id BIGINT,
    previous_value       DOUBLE PRECISION,
    created_at           TIMESTAMPTZ      NOT NULL,
    CONSTRAINT uq_personal_record_entry_slot UNIQUE (lift_log_id, category, reps, weight)
);

CREATE INDEX IF NOT EXISTS ix_personal_record_timeline
    ON public.personal_record (user_id, exercise_id);

CREATE TABLE IF NOT EXISTS public.personal_record_audit
(
    id                  BIGSERIAL PRIMARY KEY,
    pass_id             UUID        NOT NULL,
    user_id             BIGINT      NOT NULL,
    exercise_id         BIGINT      NOT NULL,
    lift_log_id         BIGINT      NOT NULL,
    trigger_kind        VARCHAR     NOT NULL,
    trigger_lift_log_id BIGINT      NOT NULL,
    is_cascade          BOOLEAN     NOT NULL,
    entry_logged_at     TIMESTAMPTZ NOT NULL,
    decision            JSONB       NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_personal_record_audit_lift_log
    ON public.personal_record_audit (lift_log_id);
CREATE INDEX IF NOT EXISTS ix_personal_record_audit_exercise
    ON public.personal_record_audit (exercise_id);
`
