package sqlinline

// Blank tokens are treated as absent so the environment fallback applies.
const QSelectIntegrationToken = `--sql 3f1c92a4-5be0-4d7e-9a61-0c27e4b8d915
select btrim(token)
from integration_tokens
where provider = $1::text
  and btrim(token) <> ''
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql b7d2e8c1-94a3-4f06-8e5b-61d0a3c7f248
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql 5a0e7b39-c2d4-4b81-a6f9-8d3e1f04c762
delete from integration_tokens
where provider = $1::text;
`
