package sqlinline

// Schema is applied in order at startup when AUTO_MIGRATE is enabled. Every
// statement is idempotent.
var Schema = []string{QCreateUsers, QCreateGenerations, QCreateGenerationsUserIndex}

const QCreateUsers = `--sql 5f25ce3e-6c8b-428d-8656-6bd188d2a4be
create table if not exists users (
    id            bigserial primary key,
    email         text not null unique,
    password_hash text not null,
    created_at    timestamptz not null default now()
);
`

const QCreateGenerations = `--sql 3a29a5e3-6030-4d03-9fcc-a121bcb596bc
create table if not exists generations (
    id            uuid primary key,
    user_id       bigint not null references users(id),
    prompt        text not null check (char_length(prompt) between 1 and 500),
    style         text not null check (style in ('realistic', 'artistic', 'cartoon', 'vintage')),
    status        text not null default 'processing' check (status in ('processing', 'completed', 'failed')),
    original_path text not null,
    result_path   text,
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now(),
    constraint generations_result_matches_status check ((status = 'completed') = (result_path is not null))
);
`

const QCreateGenerationsUserIndex = `--sql fcf0c5cf-101b-4d7d-9937-902da71fddcc
create index if not exists generations_user_created_idx
    on generations (user_id, created_at desc);
`
