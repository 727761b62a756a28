package demo

import (
	"time"

	"github.com/MrWong99/closepath/pkg/types"
)

// Speaker labels used by the scripted call.
const (
	SpeakerRep      = "rep"
	SpeakerProspect = "prospect"
)

// Script is the scripted discovery call replayed by demo calls. Timestamps are
// offsets from call start.
var Script = []types.Utterance{
	{Speaker: SpeakerRep, Text: "Hi Sarah, thanks for taking the time today. I wanted to understand more about your current lead qualification process.", Timestamp: 2 * time.Second},
	{Speaker: SpeakerProspect, Text: "Sure, happy to chat. Right now our sales team is spending way too much time on deals that go nowhere.", Timestamp: 8 * time.Second},
	{Speaker: SpeakerRep, Text: "That's frustrating. Can you quantify that for me?", Timestamp: 14 * time.Second},
	{Speaker: SpeakerProspect, Text: "We estimate our reps waste about 8 hours per week on unqualified leads. That's nearly 20% of their selling time.", Timestamp: 18 * time.Second},
	{Speaker: SpeakerRep, Text: "That's significant. What's driving you to solve this now?", Timestamp: 26 * time.Second},
	{Speaker: SpeakerProspect, Text: "Our VP of Sales set a goal to improve pipeline quality this quarter. We need to close more deals with the same headcount.", Timestamp: 30 * time.Second},
	{Speaker: SpeakerRep, Text: "Got it. Who besides yourself would be involved in making this decision?", Timestamp: 38 * time.Second},
	{Speaker: SpeakerProspect, Text: "I'd need buy-in from our VP of Sales and our CRO would need to approve the budget. Probably around $50K annually.", Timestamp: 42 * time.Second},
	{Speaker: SpeakerRep, Text: "Makes sense. What does your typical buying process look like?", Timestamp: 50 * time.Second},
	{Speaker: SpeakerProspect, Text: "We'd need to do a technical evaluation with our sales ops team, then get security sign-off, and finally present to leadership. Usually takes 6-8 weeks.", Timestamp: 54 * time.Second},
}
