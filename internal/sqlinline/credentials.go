// Package sqlinline holds the marked SQL statements run through infra.SQLRunner.
package sqlinline

const QEnsureCredentialTable = `--sql 6ec4a469-1444-41f5-a523-087bb63da944
create table if not exists api_credentials (
    provider text primary key,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QSelectCredential = `--sql b2ab867b-8c58-403b-a88f-1cae14118349
select token, updated_at
from api_credentials
where provider = $1::text
limit 1;
`

const QUpsertCredential = `--sql 930bcf77-aed0-4e3c-877e-1a505440b390
insert into api_credentials (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QDeleteCredential = `--sql 6fdc0940-49e6-4602-acc3-77748a5bc88f
delete from api_credentials
where provider = $1::text;
`
