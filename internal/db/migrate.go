package db

import (
	"context"
	"database/sql"
)

const authgateMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS user_roles (
    id serial PRIMARY KEY,
    name text NOT NULL,
    CONSTRAINT user_roles_name_unique UNIQUE (name)
);

INSERT INTO user_roles (name)
VALUES ('admin'), ('member')
ON CONFLICT (name) DO NOTHING;

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_role_id integer NOT NULL REFERENCES user_roles(id),
    oauth2_client_id text,
    oauth2_user_id text,
    email text NOT NULL,
    username text,
    profile_picture_url text,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT users_oauth2_identity_unique
        UNIQUE (oauth2_client_id, oauth2_user_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique
ON users (email);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_unique
ON users (username);

CREATE TABLE IF NOT EXISTS credentials (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    password_hash text NOT NULL,
    hash_version text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT credentials_user_unique UNIQUE (user_id)
);
`

func RunMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, authgateMigration)
	return err
}
