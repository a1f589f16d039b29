package sqlinline

const QInsertDebit = `--sql efb08912-f3a0-489a-ae34-31f00f43e88d
insert into credit_transactions (id, user_id, job_id, kind, amount)
select $1, $2, $3, 'JOB_DEBIT', $4
where not exists (
    select 1 from credit_transactions
    where job_id = $3 and kind = 'JOB_DEBIT'
);
`

const QInsertRefund = `--sql d44f178e-20b1-40b6-96d1-3f536a64317d
insert into credit_transactions (id, user_id, job_id, kind, amount)
select $1, $2, $3, 'JOB_REFUND', $4
where not exists (
    select 1 from credit_transactions
    where job_id = $3 and kind = 'JOB_REFUND'
);
`

const QInsertTopUp = `--sql d7aa9819-1bac-40b0-90c7-e6dc77180817
insert into credit_transactions (id, user_id, job_id, kind, amount)
values ($1, $2, null, 'TOP_UP', $3);
`

const QSelectBalance = `--sql 73c2bbf6-a281-416b-a892-fb86fb248ca8
select coalesce(sum(amount), 0)::bigint
from credit_transactions
where user_id = $1;
`

const QListTransactions = `--sql 449a7119-2799-47ec-aafc-6031345dfac9
select id, user_id, job_id, kind, amount, created_at
from credit_transactions
where user_id = $1
order by created_at desc
limit $2;
`
