package sqlinline

const QSelectLock = `--sql c990f6c1-0318-4059-ae1b-7d6f82b2e242
select is_locked, locked_by, locked_at, updated_at
from locks
where key = $1;
`

const QInsertLock = `--sql 3af5e425-0ae8-4d3c-84d9-40b7700914f4
insert into locks (key, is_locked, locked_by, locked_at, updated_at)
values ($1, true, $2, now(), now())
on conflict (key) do nothing;
`

const QAcquireLock = `--sql 7126a4e6-f38b-44d5-87b2-8e8ef18a54c6
update locks
set is_locked = true,
    locked_by = $2,
    locked_at = now(),
    updated_at = now()
where key = $1
  and updated_at = $3;
`

const QRenewLock = `--sql fae755e5-d595-4dca-87dc-2a0375f52238
update locks
set locked_at = now(),
    updated_at = now()
where key = $1
  and is_locked
  and locked_by = $2;
`

const QReleaseLock = `--sql 61f57fda-6e42-4d35-ab74-36cb1fc504a1
update locks
set is_locked = false,
    locked_by = null,
    locked_at = null,
    updated_at = now()
where key = $1
  and is_locked
  and locked_by = $2;
`
