package sqlinline

const QListActiveProducts = `--sql e91268c3-f177-4291-b007-e46dd538bd0b
select id, name, base_image_url, print_zones, max_colors, constraints, archived, sort_order, created_at, updated_at
from products
where not archived
order by sort_order asc, created_at asc;
`

const QListProducts = `--sql db72d0e5-3e15-4c5f-8e7f-cf8701026e9a
select id, name, base_image_url, print_zones, max_colors, constraints, archived, sort_order, created_at, updated_at
from products
order by archived asc, sort_order asc, created_at asc;
`

const QUpsertProduct = `--sql 798da31d-1ffc-4706-a454-84e551caf5b0
insert into products (id, name, base_image_url, print_zones, max_colors, constraints, archived, sort_order, created_at, updated_at)
values (coalesce(nullif($1::text, '')::uuid, gen_random_uuid()), $2::text, $3::text, $4::text[], $5::int, $6::text, $7::boolean, $8::int, now(), now())
on conflict (id) do update set
  name = excluded.name,
  base_image_url = excluded.base_image_url,
  print_zones = excluded.print_zones,
  max_colors = excluded.max_colors,
  constraints = excluded.constraints,
  archived = excluded.archived,
  sort_order = excluded.sort_order,
  updated_at = now()
returning id, name, base_image_url, print_zones, max_colors, constraints, archived, sort_order, created_at, updated_at;
`
