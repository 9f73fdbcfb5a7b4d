package mapper

import "viralsafe-backend/internal/features/post/models"

// ToPostResponse maps Post model to PostResponse DTO
func ToPostResponse(p *models.Post) *models.PostResponse {
	resp := &models.PostResponse{
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		AuthorWallet:   p.AuthorWallet,
		Title:          p.Title,
		Content:        p.Content,
		ContentType:    p.ContentType,
		Status:         p.Status,
		Tags:           p.Tags,
		Metrics:        p.Metrics.WithEngagement(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		PublishedAt:    p.PublishedAt,
		ViralAt:        p.ViralAt,
		ModeratorNotes: p.ModeratorNotes,
		ModeratedAt:    p.ModeratedAt,
	}
	if resp.Tags.Hashtags == nil {
		resp.Tags.Hashtags = []string{}
	}
	if resp.Tags.Mentions == nil {
		resp.Tags.Mentions = []string{}
	}
	if p.NFT != nil {
		nft := *p.NFT
		if nft.SaleHistory == nil {
			nft.SaleHistory = []models.SaleRecord{}
		}
		resp.NFTMetadata = &nft
	}
	return resp
}

func ToPostResponses(posts []*models.Post) []*models.PostResponse {
	out := make([]*models.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, ToPostResponse(p))
	}
	return out
}

func ToVoteView(v *models.Vote) *models.VoteView {
	return &models.VoteView{
		ID:          v.ID,
		PostID:      v.PostID,
		VoteType:    v.VoteType,
		TokensSpent: v.TokensSpent,
		CreatedAt:   v.CreatedAt,
	}
}
