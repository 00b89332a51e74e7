package sqlinline

const QEnqueueTask = `--sql ba6588a1-91ac-41d4-8f17-0aee3637760a
insert into pipeline_tasks (id, session_id, stage, regenerate, status, attempts, run_after, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::boolean, 'QUEUED', 0, now(), now(), now())
returning id, session_id, stage, regenerate, status, attempts, last_error, run_after, created_at, updated_at;
`

// QClaimTask takes the oldest runnable task. RUNNING rows whose lease ($1
// seconds) expired are taken over unless they already used $2 attempts.
const QClaimTask = `--sql ceb14c02-1fca-46c4-b939-202302582c5a
with next_task as (
  select id
  from pipeline_tasks
  where (status = 'QUEUED' and run_after <= now())
     or (status = 'RUNNING'
         and updated_at < now() - make_interval(secs => $1::int)
         and attempts < $2::int)
  order by created_at asc
  for update skip locked
  limit 1
)
update pipeline_tasks t
set status = 'RUNNING', attempts = t.attempts + 1, updated_at = now()
from next_task
where t.id = next_task.id
returning t.id, t.session_id, t.stage, t.regenerate, t.status, t.attempts, t.last_error, t.run_after, t.created_at, t.updated_at;
`

const QCompleteTask = `--sql 6564b2c1-6cd6-434a-acdd-8a7def789d9c
update pipeline_tasks
set status = 'SUCCEEDED', last_error = '', updated_at = now()
where id = $1::uuid;
`

const QFailTask = `--sql ef707de2-074a-4e43-aa0e-c81115e5f91e
update pipeline_tasks
set status = 'FAILED', last_error = $2::text, updated_at = now()
where id = $1::uuid;
`

// QExpireAbandonedTasks fails RUNNING rows whose lease expired after the last allowed attempt.
const QExpireAbandonedTasks = `--sql 8cd14180-d6cb-485a-aefc-2ccfdef16d92
update pipeline_tasks
set status = 'FAILED', last_error = 'lease expired', updated_at = now()
where status = 'RUNNING'
  and updated_at < now() - make_interval(secs => $1::int)
  and attempts >= $2::int;
`

// QReleaseTask hands a RUNNING task back to the queue without spending the attempt.
const QReleaseTask = `--sql 2e9b7f50-3c1a-4d8e-b6f2-7a45c0d19e83
update pipeline_tasks
set status = 'QUEUED',
    attempts = greatest(attempts - 1, 0),
    run_after = now(),
    updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`
