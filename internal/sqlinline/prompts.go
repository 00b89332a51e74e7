package sqlinline

const QSelectPromptTemplate = `--sql e4e480d9-be03-4704-9203-a03017c83642
select name, version, template, variables, updated_at
from prompt_templates
where name = $1::text
limit 1;
`

const QListPromptTemplates = `--sql 5f4b32a9-f416-4ddd-b202-bd1f56a04b83
select name, version, template, variables, updated_at
from prompt_templates
order by name asc;
`

// QSavePromptTemplate bumps the stored version on every write.
const QSavePromptTemplate = `--sql ce29d034-0a76-4114-8b65-66815f386ecd
insert into prompt_templates (name, version, template, variables, updated_at)
values ($1::text, $2::int, $3::text, $4::text[], now())
on conflict (name) do update set
  version = prompt_templates.version + 1,
  template = excluded.template,
  variables = excluded.variables,
  updated_at = now()
returning name, version, template, variables, updated_at;
`
