package sqlinline

const QInsertUser = `--sql 78e5daef-e282-428b-9902-1a32bcd215ae
insert into users (email, password_hash)
values ($1::text, $2::text)
returning id, email, password_hash, created_at;
`

const QSelectUserByEmail = `--sql a76b1d63-58d4-4d2b-84c7-b58f5f1ee33a
select id, email, password_hash, created_at
from users
where email = $1::text
limit 1;
`

const QSelectUserByID = `--sql 639210f6-66bb-4b35-ae16-945b155d3b89
select id, email, password_hash, created_at
from users
where id = $1::bigint
limit 1;
`
