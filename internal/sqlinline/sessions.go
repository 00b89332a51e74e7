package sqlinline

// Session rows are always selected in this column order; see repo.scanSession.

const QInsertSessionWithTask = `--sql 507951fc-7a1d-48b0-88c2-e34899a65d95
with ins as (
  insert into brand_sessions (id, email, url, status, product_images, version, created_at, updated_at)
  values (gen_random_uuid(), $1::text, $2::text, $3::text, '[]'::jsonb, 1, now(), now())
  on conflict (email, url) do nothing
  returning id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
            product_images, error_message, version, last_notified_at, created_at, updated_at
),
task as (
  insert into pipeline_tasks (id, session_id, stage, regenerate, status, attempts, run_after, created_at, updated_at)
  select gen_random_uuid(), ins.id, $4::text, false, 'QUEUED', 0, now(), now(), now()
  from ins
  returning id
)
select id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
       product_images, error_message, version, last_notified_at, created_at, updated_at, true as created
from ins
union all
select id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
       product_images, error_message, version, last_notified_at, created_at, updated_at, false as created
from brand_sessions
where email = $1::text and url = $2::text and not exists (select 1 from ins)
limit 1;
`

const QSelectSessionByEmailURL = `--sql 087c2a0c-89e2-4570-a76c-6b295a0297f7
select id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
       product_images, error_message, version, last_notified_at, created_at, updated_at
from brand_sessions
where email = $1::text and url = $2::text
limit 1;
`

const QSelectSessionByID = `--sql 61cf9573-77d8-4a6b-b5ca-a6e1412dda6a
select id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
       product_images, error_message, version, last_notified_at, created_at, updated_at
from brand_sessions
where id = $1::uuid
limit 1;
`

const QUpdateSessionVersioned = `--sql 6d1aeb10-efcf-4d86-b0ff-46e825fc4d39
update brand_sessions
set status = $3::text,
    scraped_data = $4::jsonb,
    concept = $5::text,
    motif_description = $6::text,
    motif_image_url = $7::text,
    product_images = coalesce($8::jsonb, '[]'::jsonb),
    error_message = $9::text,
    version = version + 1,
    updated_at = now()
where id = $1::uuid and version = $2::bigint
returning id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
          product_images, error_message, version, last_notified_at, created_at, updated_at;
`

const QListStaleSessions = `--sql 3c709d7a-b2bc-4208-9ab2-815b5ec185c7
select id, email, url, status, scraped_data, concept, motif_description, motif_image_url,
       product_images, error_message, version, last_notified_at, created_at, updated_at
from brand_sessions
where status = any($1::text[])
  and updated_at < $2::timestamptz
  and (last_notified_at is null or last_notified_at < updated_at)
order by updated_at asc
limit $3::int;
`

const QMarkSessionNotified = `--sql eb27c496-b1e7-4b50-86a6-4fa566ef0b7c
update brand_sessions
set last_notified_at = $2::timestamptz
where id = $1::uuid;
`
