package services

import (
	"fmt"
	"log"

	"github.com/shreyasurfriend/scavenger-hunt/models"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

// NotifyService is the completion event fan-out: websocket broadcast for
// anyone watching live, SNS push to parent devices, and an SES email when
// the child has a parent address on file. Everything here is best-effort;
// a notification failure never touches the verdict or the ledger.
type NotifyService struct {
	rt *RealtimeHub
	ps *PushService
}

func NewNotifyService(rt *RealtimeHub, ps *PushService) *NotifyService {
	return &NotifyService{rt: rt, ps: ps}
}

func (n *NotifyService) CompletionRecorded(child *models.Child, activity *models.Activity, completion *models.Completion) {
	if n.rt != nil {
		n.rt.Broadcast(child.ID, map[string]any{
			"kind":       "completion.recorded",
			"completion": completion,
			"activity":   activity.Title,
		})
	}
	if n.ps != nil {
		n.ps.PushToParents(child.ID, "Treasure found!",
			fmt.Sprintf("%s completed \"%s\" and earned %d token(s)", child.Name, activity.Title, completion.TokensAwarded),
			map[string]string{"completionId": fmt.Sprintf("%d", completion.ID)},
		)
	}
	if child.ParentEmail != "" {
		if err := utils.SendRewardEmail(child.ParentEmail, child.Name, activity.Title, completion.TokensAwarded); err != nil {
			log.Printf("reward email to %s failed: %v", child.ParentEmail, err)
		}
	}
}
