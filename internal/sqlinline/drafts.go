package sqlinline

const QUpsertDraft = `--sql d819cf6d-5cbf-4548-9a2b-aba8d8b96388
insert into tattty_drafts (session_id, draft, created_at, updated_at)
values ($1::text, $2::jsonb, now(), now())
on conflict (session_id) do update set
    draft = excluded.draft,
    updated_at = now();
`

const QSelectDraft = `--sql 1c500b85-1389-4717-819a-355343c80a54
select draft
from tattty_drafts
where session_id = $1::text
limit 1;
`

const QDeleteDraft = `--sql 94ae1b53-c39f-47e8-a728-7de1af4a674d
delete from tattty_drafts
where session_id = $1::text;
`

const QPurgeStaleDrafts = `--sql 49937b80-d06f-4e2f-abc8-fc2655caf660
delete from tattty_drafts
where updated_at < now() - make_interval(secs => $1::int);
`
