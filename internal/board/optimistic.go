package board

import (
	"communityTasks/internal/models/task"

	"github.com/google/uuid"
)

// pendingStatus - локальная правка статуса отклика, ожидающая ответа сервера.
// commit заменяет отклик подтверждённой версией, rollback возвращает прежний статус.
type pendingStatus struct {
	appID uuid.UUID
	prev  task.ApplicationStatus
	next  task.ApplicationStatus
}

// apply меняет статус во всех локальных копиях отклика
func (p *pendingStatus) apply(lists ...[]*task.Application) {
	for _, list := range lists {
		for _, a := range list {
			if a.UUID == p.appID {
				a.Status = p.next
			}
		}
	}
}

// rollback не трогает копии, которые уже успела заменить новая загрузка
func (p *pendingStatus) rollback(lists ...[]*task.Application) {
	for _, list := range lists {
		for _, a := range list {
			if a.UUID == p.appID && a.Status == p.next {
				a.Status = p.prev
			}
		}
	}
}

func (p *pendingStatus) commit(confirmed *task.Application, lists ...[]*task.Application) {
	for _, list := range lists {
		for _, a := range list {
			if a.UUID == p.appID {
				*a = *confirmed.Clone()
			}
		}
	}
}

// embeddedApplications возвращает указатели на отклики, встроенные в задачи владельца
func embeddedApplications(tasks []*task.Task) []*task.Application {
	var res []*task.Application
	for _, t := range tasks {
		for i := range t.Applications {
			res = append(res, &t.Applications[i])
		}
	}
	return res
}
