package sqlinline

const QInsertGeneration = `--sql 90571538-59cb-46df-8e08-c56ca6c0abbd
insert into generations (id, user_id, prompt, style, status, original_path)
values ($1::uuid, $2::bigint, $3::text, $4::text, 'processing', $5::text)
returning id::text, user_id, prompt, style, status, original_path, result_path, created_at, updated_at;
`

const QSelectGenerationByID = `--sql c1d822ef-6971-414f-b2d4-4975a700af04
select id::text, user_id, prompt, style, status, original_path, result_path, created_at, updated_at
from generations
where id = $1::uuid
limit 1;
`

const QListGenerationsByUser = `--sql 0ac41a5d-a374-47c9-b4e1-1ec2566a3a5b
select id::text, user_id, prompt, style, status, original_path, result_path, created_at, updated_at
from generations
where user_id = $1::bigint
order by created_at desc, id
limit $2::int;
`

const QCountGenerationsByUser = `--sql dc62e498-c173-41a5-b584-9dff0f7da630
select count(*)
from generations
where user_id = $1::bigint;
`

// QFinalizeGeneration only matches rows still processing, so a second
// terminal write affects nothing.
const QFinalizeGeneration = `--sql e17249f6-2c7a-42c9-8192-1a4ad53abc41
update generations
set status = $2::text,
    result_path = $3::text,
    updated_at = now()
where id = $1::uuid
  and status = 'processing'
returning id::text, user_id, prompt, style, status, original_path, result_path, created_at, updated_at;
`

const QSelectGenerationStatus = `--sql 4c4ddc90-6a6b-4d89-b8ee-b689264a0b3d
select status
from generations
where id = $1::uuid;
`

const QDeleteGeneration = `--sql 5301b9ce-10ae-4e1f-bc41-0bcaa6b8ef06
delete from generations
where id = $1::uuid;
`

// QFailStaleGenerations fails rows a previous process left processing.
const QFailStaleGenerations = `--sql 7d0e61b4-93a2-4c5f-8b1e-2f6a90c4d7e3
update generations
set status = 'failed', updated_at = now()
where status = 'processing'
  and created_at < $1::timestamptz;
`
